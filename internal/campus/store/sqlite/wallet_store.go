package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
	dbpkg "github.com/aengwo/rfid-project/internal/db"
)

const txColumns = `id, user_id, type, amount_cents, description, COALESCE(reference, ''),
  status, created_at_ms, updated_at_ms`

type WalletStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewWalletStore(db *sql.DB, writer *dbpkg.Worker) *WalletStore {
	return &WalletStore{db: db, writer: writer}
}

func (s *WalletStore) CreatePending(ctx context.Context, rec store.TransactionRecord) (store.TransactionRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Status = types.TxPending

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, rec.UserID); err != nil {
			return err
		}
		id, err := insertTransaction(ctx, tx, rec)
		rec.ID = id
		return err
	})
	if err != nil {
		return store.TransactionRecord{}, err
	}
	return rec, nil
}

func (s *WalletStore) SettleDeposit(ctx context.Context, reference string, success bool, at time.Time) (store.TransactionRecord, int64, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var (
		out     store.TransactionRecord
		balance int64
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+txColumns+` FROM transactions WHERE reference = ? AND type = 'deposit';`, reference))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("SettleDeposit lookup: %w", err)
		}
		if rec.Status != types.TxPending {
			out = rec
			return store.ErrAlreadySettled
		}

		status := types.TxFailed
		if success {
			status = types.TxCompleted
			if _, err := tx.ExecContext(ctx, `
UPDATE users SET balance_cents = balance_cents + ?, updated_at_ms = ? WHERE id = ?;`,
				rec.AmountCents, toMs(at), rec.UserID); err != nil {
				return fmt.Errorf("SettleDeposit credit: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE transactions SET status = ?, updated_at_ms = ? WHERE id = ? AND status = 'pending';`,
			status, toMs(at), rec.ID); err != nil {
			return fmt.Errorf("SettleDeposit status: %w", err)
		}
		rec.Status = status
		rec.UpdatedAt = at
		out = rec

		balance, err = userBalance(ctx, tx, rec.UserID)
		return err
	})
	if err != nil {
		return out, 0, err
	}
	return out, balance, nil
}

func (s *WalletStore) Debit(ctx context.Context, rec store.TransactionRecord) (store.TransactionRecord, int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Status = types.TxCompleted

	var balance int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE users
SET balance_cents = balance_cents - ?, updated_at_ms = ?
WHERE id = ? AND balance_cents >= ?;`,
			rec.AmountCents, toMs(rec.CreatedAt), rec.UserID, rec.AmountCents)
		if err != nil {
			return fmt.Errorf("Debit update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if err := requireUser(ctx, tx, rec.UserID); err != nil {
				return err
			}
			return store.ErrInsufficientBalance
		}

		id, err := insertTransaction(ctx, tx, rec)
		if err != nil {
			return err
		}
		rec.ID = id

		balance, err = userBalance(ctx, tx, rec.UserID)
		return err
	})
	if err != nil {
		return store.TransactionRecord{}, 0, err
	}
	return rec, balance, nil
}

func (s *WalletStore) ListTransactions(ctx context.Context, userID int64, limit int) ([]store.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY id DESC LIMIT ?;`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var out []store.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions rows: %w", err)
	}
	return out, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, rec store.TransactionRecord) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO transactions(
  user_id, type, amount_cents, description, reference, status, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.UserID, rec.Type, rec.AmountCents, rec.Description, nullString(rec.Reference),
		rec.Status, toMs(rec.CreatedAt), toMs(rec.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func requireUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?;`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	return nil
}

func userBalance(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	var bal int64
	if err := tx.QueryRowContext(ctx, `SELECT balance_cents FROM users WHERE id = ?;`, userID).Scan(&bal); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return bal, nil
}

func scanTransaction(r rowScanner) (store.TransactionRecord, error) {
	var (
		rec                  store.TransactionRecord
		createdMs, updatedMs int64
	)
	if err := r.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.AmountCents, &rec.Description,
		&rec.Reference, &rec.Status, &createdMs, &updatedMs); err != nil {
		return store.TransactionRecord{}, err
	}
	rec.CreatedAt = fromMs(createdMs)
	rec.UpdatedAt = fromMs(updatedMs)
	return rec, nil
}
