package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

const (
	usersPageSize = 10
	maxNameLen    = 100
)

var (
	ErrInvalidName        = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrInvalidEmail       = fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	ErrInvalidStatus      = fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
	ErrInvalidAccessLevel = fmt.Errorf("%w: access_level must be 1, 2 or 3", ErrInvalidInput)
)

// Directory maps cards to users and backs the admin user endpoints.
type Directory struct {
	store store.DirectoryStore
	now   func() time.Time
}

func NewDirectory(st store.DirectoryStore) *Directory {
	return &Directory{store: st, now: time.Now}
}

// Lookup resolves a card to its user. An unregistered card is reported with
// ok=false, not an error.
func (d *Directory) Lookup(ctx context.Context, cardID string) (store.UserRecord, bool, error) {
	id, err := NormalizeCardID(cardID)
	if err != nil {
		return store.UserRecord{}, false, err
	}
	return d.store.LookupCard(ctx, id)
}

func (d *Directory) Get(ctx context.Context, id int64) (types.User, error) {
	rec, err := d.store.GetUser(ctx, id)
	if err != nil {
		return types.User{}, mapStoreErr(err)
	}
	return userFromRecord(rec), nil
}

// List returns one page of users, newest first. page is 1-based.
func (d *Directory) List(ctx context.Context, search string, page int) (types.UserPage, error) {
	if page < 1 {
		page = 1
	}
	rows, total, err := d.store.ListUsers(ctx, store.UserQuery{
		Search: strings.TrimSpace(search),
		Limit:  usersPageSize,
		Offset: (page - 1) * usersPageSize,
	})
	if err != nil {
		return types.UserPage{}, err
	}

	users := make([]types.User, 0, len(rows))
	for _, r := range rows {
		u := userFromRecord(r.UserRecord)
		u.LastAccess = formatTimePtr(r.LastAccess)
		users = append(users, u)
	}
	return types.UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		TotalPages: int((total + usersPageSize - 1) / usersPageSize),
	}, nil
}

func (d *Directory) Create(ctx context.Context, in types.UserInput) (types.User, error) {
	rec := store.UserRecord{Status: types.UserActive, AccessLevel: 1}
	if err := applyUserInput(&rec, in, true); err != nil {
		return types.User{}, err
	}
	now := d.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	out, err := d.store.CreateUser(ctx, rec)
	if err != nil {
		return types.User{}, mapStoreErr(err)
	}
	return userFromRecord(out), nil
}

// Update changes the fields set in in and leaves the rest alone.
func (d *Directory) Update(ctx context.Context, id int64, in types.UserInput) (types.User, error) {
	rec, err := d.store.GetUser(ctx, id)
	if err != nil {
		return types.User{}, mapStoreErr(err)
	}
	if err := applyUserInput(&rec, in, false); err != nil {
		return types.User{}, err
	}
	rec.UpdatedAt = d.now().UTC()

	out, err := d.store.UpdateUser(ctx, rec)
	if err != nil {
		return types.User{}, mapStoreErr(err)
	}
	return userFromRecord(out), nil
}

func (d *Directory) Delete(ctx context.Context, id int64) error {
	return mapStoreErr(d.store.DeleteUser(ctx, id))
}

func (d *Directory) Count(ctx context.Context) (int64, error) {
	return d.store.CountUsers(ctx)
}

func applyUserInput(rec *store.UserRecord, in types.UserInput, create bool) error {
	if create || in.CardID != "" {
		id, err := NormalizeCardID(in.CardID)
		if err != nil {
			return err
		}
		rec.CardID = id
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		if len(name) > maxNameLen {
			return ErrInvalidName
		}
		rec.Name = name
	} else if create {
		return ErrInvalidName
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
			return ErrInvalidEmail
		}
		rec.Email = email
	} else if create {
		return ErrInvalidEmail
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		rec.Phone = phone
	}
	switch s := strings.ToLower(strings.TrimSpace(in.Status)); s {
	case "":
	case types.UserActive, types.UserInactive:
		rec.Status = s
	default:
		return ErrInvalidStatus
	}
	if in.AccessLevel != 0 {
		if in.AccessLevel < 1 || in.AccessLevel > 3 {
			return ErrInvalidAccessLevel
		}
		rec.AccessLevel = in.AccessLevel
	}
	return nil
}

// mapStoreErr turns store sentinels into service ones so the transport
// layer only needs to know about this package.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrCardInUse),
		errors.Is(err, store.ErrEmailInUse),
		errors.Is(err, store.ErrReferenced),
		errors.Is(err, store.ErrAlreadySettled):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientBalance
	default:
		return err
	}
}
