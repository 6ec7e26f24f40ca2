package domain

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("email or username already in use")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("user not found")
	ErrHashing      = errors.New("password hashing failed")
)

// Token failures are distinguishable from each other but all satisfy
// errors.Is(err, ErrUnauthorized).
var (
	ErrTokenMissing = &tokenError{msg: "missing bearer token"}
	ErrTokenInvalid = &tokenError{msg: "token invalid"}
	ErrTokenExpired = &tokenError{msg: "token expired"}
)

type tokenError struct {
	msg string
}

func (e *tokenError) Error() string { return e.msg }

func (e *tokenError) Unwrap() error { return ErrUnauthorized }

// Client-facing messages. Unknown email and wrong password share one message
// so the response does not reveal which accounts exist.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgConflict           = "Email or username already in use"
	MsgNotFound           = "User not found"
	MsgNotAuthorized      = "Not authorized"
)
