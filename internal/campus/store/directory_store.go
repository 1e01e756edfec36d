package store

import (
	"context"
	"time"
)

type UserRecord struct {
	ID           int64
	CardID       string
	Name         string
	Email        string
	Phone        string
	Status       string
	AccessLevel  int
	BalanceCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is a user row plus the time of its most recent access event.
type UserSummary struct {
	UserRecord
	LastAccess *time.Time
}

type UserQuery struct {
	Search string // matched against name, email and card id
	Limit  int
	Offset int
}

// DirectoryStore maps card identifiers to users and backs admin CRUD.
type DirectoryStore interface {
	LookupCard(ctx context.Context, cardID string) (UserRecord, bool, error)
	GetUser(ctx context.Context, id int64) (UserRecord, error)
	ListUsers(ctx context.Context, q UserQuery) ([]UserSummary, int64, error)
	CreateUser(ctx context.Context, u UserRecord) (UserRecord, error)
	UpdateUser(ctx context.Context, u UserRecord) (UserRecord, error)
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int64, error)
}
