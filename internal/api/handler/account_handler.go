package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/learnhub/user-service/internal/core/domain"
	"github.com/learnhub/user-service/internal/core/ports"
)

// HeaderIdempotencyKey lets a client retry registration safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplayed is set on a register response served from a prior request.
const HeaderIdempotentReplayed = "Idempotent-Replayed"

// AccountHandler handles the /api/users endpoints. Errors are returned to the
// echo HTTPErrorHandler, which renders them.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Register creates a new account.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string           false  "Key that makes retried registrations return the first result"
// @Param        body             body      registerRequest  true   "User registration details"
// @Success      201              {object}  domain.PublicAccount
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /api/users/register [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if c.Bind(&req) != nil {
		return errInvalidPayload
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Role:           req.Role,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	if result.Replayed {
		c.Response().Header().Set(HeaderIdempotentReplayed, "true")
	}
	return c.JSON(http.StatusCreated, result.Account)
}

// Login authenticates a user and returns a session token.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/users/login [post]
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginRequest
	if c.Bind(&req) != nil {
		return errInvalidPayload
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.service.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{Token: result.Token, User: result.User})
}

// GetProfile returns the account of the token holder.
//
// @Summary      Get own profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.PublicAccount
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/profile [get]
func (h *AccountHandler) GetProfile(c echo.Context) error {
	accountID, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	account, err := h.service.GetByID(c.Request().Context(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

// UpdateProfile changes username, email or password of the token holder.
//
// @Summary      Update own profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  domain.PublicAccount
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users/profile [put]
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	accountID, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if c.Bind(&req) != nil {
		return errInvalidPayload
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := h.service.Update(c.Request().Context(), accountID, ports.UpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

var errInvalidPayload = fmt.Errorf("%w: invalid payload", domain.ErrValidation)
