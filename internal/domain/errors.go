package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoImages        = errors.New("no source images")
	ErrNoSpecs         = errors.New("no image specs")
	ErrNoEditor        = errors.New("no image editor configured")
	ErrProviderFailure = errors.New("provider failure")
	ErrInvalidUpdate   = errors.New("invalid parameter update")
)
