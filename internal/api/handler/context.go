package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/learnhub/user-service/internal/api/middleware"
	"github.com/learnhub/user-service/internal/core/domain"
)

// ctxAccountID extracts the account id injected by the Auth middleware. A
// missing value means the route was not behind the middleware.
func ctxAccountID(c echo.Context) (string, error) {
	id, _ := c.Get(middleware.CtxAccountID).(string)
	if id == "" {
		return "", domain.ErrTokenMissing
	}
	return id, nil
}
