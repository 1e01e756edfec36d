package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidCardID    = fmt.Errorf("%w: card_id must be 8, 14 or 20 hex characters", ErrInvalidInput)
	ErrInvalidLocation  = fmt.Errorf("%w: location is required", ErrInvalidInput)
	ErrInvalidDirection = fmt.Errorf("%w: direction must be entry or exit", ErrInvalidInput)
	ErrInvalidReaderID  = fmt.Errorf("%w: reader_id is required", ErrInvalidInput)
	ErrInvalidAmount    = fmt.Errorf("%w: amount is out of range", ErrInvalidInput)
	ErrUnknownService   = fmt.Errorf("%w: unknown service", ErrInvalidInput)
	ErrInvalidReference = fmt.Errorf("%w: reference is required", ErrInvalidInput)
	ErrCardNotPayable   = fmt.Errorf("%w: card is not registered to an active user", ErrInvalidInput)

	// ErrStoreUnavailable wraps any persistence failure during a scan. The
	// scan was not recorded and may be retried by the reader.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
