package domain

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrAuthentication    = errors.New("webhook authentication failed")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrConflict          = errors.New("payment conflict")
	ErrGateway           = errors.New("payment gateway error")
	ErrPersistence       = errors.New("persistence error")
	ErrCheckout          = errors.New("checkout failed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
