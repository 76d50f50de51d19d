package core

import "errors"

// Billing errors, classified at the HTTP boundary with errors.Is.
var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("webhook payload could not be decoded")

	ErrInvalidAction  = errors.New("invalid billing action")
	ErrInvalidRequest = errors.New("invalid billing request")

	// ErrUpstream wraps payment provider API failures.
	ErrUpstream = errors.New("payment provider operation failed")
	// ErrPersistence wraps user store failures.
	ErrPersistence = errors.New("user store operation failed")

	// ErrCustomerMismatch means a user is already linked to a different Stripe customer.
	ErrCustomerMismatch = errors.New("user already linked to a different customer")

	ErrUserNotFound = errors.New("user not found")
)
