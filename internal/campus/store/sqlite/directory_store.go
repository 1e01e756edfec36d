package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	dbpkg "github.com/aengwo/rfid-project/internal/db"
)

const userColumns = `u.id, u.card_id, u.name, u.email, COALESCE(u.phone, ''), u.status,
  u.access_level, u.balance_cents, u.created_at_ms, u.updated_at_ms`

type DirectoryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDirectoryStore(db *sql.DB, writer *dbpkg.Worker) *DirectoryStore {
	return &DirectoryStore{db: db, writer: writer}
}

func (s *DirectoryStore) LookupCard(ctx context.Context, cardID string) (store.UserRecord, bool, error) {
	return lookupCard(ctx, s.db, cardID)
}

func lookupCard(ctx context.Context, q queryer, cardID string) (store.UserRecord, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.card_id = ?;`, cardID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserRecord{}, false, nil
	}
	if err != nil {
		return store.UserRecord{}, false, fmt.Errorf("LookupCard: %w", err)
	}
	return u, true, nil
}

func (s *DirectoryStore) GetUser(ctx context.Context, id int64) (store.UserRecord, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q queryer, id int64) (store.UserRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?;`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("GetUser: %w", err)
	}
	return u, nil
}

func (s *DirectoryStore) ListUsers(ctx context.Context, q store.UserQuery) ([]store.UserSummary, int64, error) {
	where := "1 = 1"
	var args []any
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		where = `(u.name LIKE ? ESCAPE '\' OR u.email LIKE ? ESCAPE '\' OR u.card_id LIKE ? ESCAPE '\')`
		args = append(args, like, like, like)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u WHERE `+where+`;`, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListUsers count: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+userColumns+`,
  (SELECT MAX(e.occurred_at_ms) FROM access_events e WHERE e.user_id = u.id)
FROM users u
WHERE `+where+`
ORDER BY u.id DESC
LIMIT ? OFFSET ?;`, append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListUsers query: %w", err)
	}
	defer rows.Close()

	var out []store.UserSummary
	for rows.Next() {
		var (
			u                  store.UserRecord
			createdMs, updatedMs int64
			last               sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.CardID, &u.Name, &u.Email, &u.Phone, &u.Status,
			&u.AccessLevel, &u.BalanceCents, &createdMs, &updatedMs, &last); err != nil {
			return nil, 0, fmt.Errorf("ListUsers scan: %w", err)
		}
		u.CreatedAt = fromMs(createdMs)
		u.UpdatedAt = fromMs(updatedMs)
		out = append(out, store.UserSummary{UserRecord: u, LastAccess: timePtr(last)})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListUsers rows: %w", err)
	}
	return out, total, nil
}

func (s *DirectoryStore) CreateUser(ctx context.Context, u store.UserRecord) (store.UserRecord, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO users(
  card_id, name, email, phone, status, access_level, balance_cents, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			u.CardID, u.Name, u.Email, nullString(u.Phone), u.Status, u.AccessLevel,
			u.BalanceCents, toMs(u.CreatedAt), toMs(u.UpdatedAt),
		)
		if err != nil {
			return mapUserWriteErr("CreateUser", err)
		}
		u.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return store.UserRecord{}, err
	}
	return u, nil
}

// UpdateUser rewrites the profile fields of an existing user. Balance is
// owned by the wallet and is never changed here.
func (s *DirectoryStore) UpdateUser(ctx context.Context, u store.UserRecord) (store.UserRecord, error) {
	now := time.Now().UTC()

	var out store.UserRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE users
SET card_id = ?, name = ?, email = ?, phone = ?, status = ?, access_level = ?, updated_at_ms = ?
WHERE id = ?;`,
			u.CardID, u.Name, u.Email, nullString(u.Phone), u.Status, u.AccessLevel, toMs(now), u.ID,
		)
		if err != nil {
			return mapUserWriteErr("UpdateUser", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		out, err = getUser(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return store.UserRecord{}, err
	}
	return out, nil
}

func (s *DirectoryStore) DeleteUser(ctx context.Context, id int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var refs int64
		if err := tx.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM access_events WHERE user_id = ?)
     + (SELECT COUNT(*) FROM transactions WHERE user_id = ?);`, id, id,
		).Scan(&refs); err != nil {
			return fmt.Errorf("DeleteUser refs: %w", err)
		}
		if refs > 0 {
			return store.ErrReferenced
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("DeleteUser: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *DirectoryStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountUsers: %w", err)
	}
	return n, nil
}

func scanUser(r rowScanner) (store.UserRecord, error) {
	var (
		u                  store.UserRecord
		createdMs, updatedMs int64
	)
	if err := r.Scan(&u.ID, &u.CardID, &u.Name, &u.Email, &u.Phone, &u.Status,
		&u.AccessLevel, &u.BalanceCents, &createdMs, &updatedMs); err != nil {
		return store.UserRecord{}, err
	}
	u.CreatedAt = fromMs(createdMs)
	u.UpdatedAt = fromMs(updatedMs)
	return u, nil
}

func mapUserWriteErr(op string, err error) error {
	switch {
	case isUniqueViolation(err, "users.card_id"):
		return store.ErrCardInUse
	case isUniqueViolation(err, "users.email"):
		return store.ErrEmailInUse
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
