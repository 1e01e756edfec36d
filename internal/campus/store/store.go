package store

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrCardInUse           = errors.New("card already assigned to another user")
	ErrEmailInUse          = errors.New("email already registered")
	ErrReferenced          = errors.New("record is referenced by history")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadySettled      = errors.New("transaction already settled")
)
