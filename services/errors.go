package services

import "errors"

// Domain errors returned by the services. Controllers translate them to HTTP responses.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("operation forbidden")
	ErrConflict            = errors.New("account already exists")
	ErrValidation          = errors.New("validation failed")
	ErrTooManyTags         = errors.New("too many tags, maximum is 5")
	ErrNoTransformedImage  = errors.New("post has no transformed image yet, please transform it first")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidCredentials  = errors.New("invalid password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrBanned              = errors.New("user is banned")
	ErrSelfOperation       = errors.New("can't operate with himself")
)
