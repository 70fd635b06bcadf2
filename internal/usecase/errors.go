package usecase

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("resource not found")
	ErrTransient           = errors.New("transient provider failure")
	ErrAmbiguousMatch      = errors.New("ambiguous match")
	ErrLowConfidence       = errors.New("low confidence match")
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrConfiguration       = errors.New("configuration error")
)
