package models

import "errors"

// Sentinel errors returned by services and mapped to HTTP statuses by handlers
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrPaymentNotPending  = errors.New("payment is not pending")
	ErrPaymentExpired     = errors.New("payment has expired")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already exists")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrSlugTaken          = errors.New("slug already exists")
	ErrProviderNotEnabled = errors.New("payment provider is not configured")
	ErrUnsupported        = errors.New("operation not supported for this payment")
	ErrCourseFree         = errors.New("course is free")
	ErrPaymentRequired    = errors.New("course requires payment")
)
