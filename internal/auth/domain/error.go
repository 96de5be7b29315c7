package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAdminNotFound      = errors.New("admin_not_found")
	ErrAdminExists        = errors.New("admin_exists")
	ErrForbidden          = errors.New("forbidden")
)
