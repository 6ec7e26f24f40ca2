package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/learnhub/user-service/internal/core/domain"
	"github.com/learnhub/user-service/internal/core/ports"
	"github.com/learnhub/user-service/internal/pkg/metrics"
)

// Context keys populated by Auth.
const (
	CtxAccountID = "account_id"
	CtxRole      = "role"
)

// Auth validates the bearer token and injects the account id and role into
// the echo context. Failures are returned as domain token errors so the
// error handler answers 401 uniformly.
func Auth(tokens ports.TokenService, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
				return err
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				result := "invalid"
				if errors.Is(err, domain.ErrTokenExpired) {
					result = "expired"
				}
				metrics.TokenVerificationsTotal.WithLabelValues(result).Inc()
				log.Debug().Str("result", result).Str("path", c.Path()).Msg("bearer token rejected")
				return err
			}

			metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
			c.Set(CtxAccountID, claims.AccountID)
			c.Set(CtxRole, string(claims.Role))

			return next(c)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", domain.ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}
