package services

import (
	"errors"

	"cancionero/internal/repository"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrDuplicate       = errors.New("duplicate")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = repository.ErrNotFound
)
