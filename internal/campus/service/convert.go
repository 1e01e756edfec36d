package service

import (
	"strings"
	"time"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func userFromRecord(r store.UserRecord) types.User {
	return types.User{
		ID:           r.ID,
		CardID:       r.CardID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Status:       r.Status,
		AccessLevel:  r.AccessLevel,
		BalanceCents: r.BalanceCents,
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
}

func eventFromRecord(r store.AccessEventRecord) types.AccessEvent {
	return types.AccessEvent{
		ID:         r.ID,
		CardID:     r.CardID,
		UserID:     r.UserID,
		UserName:   r.UserName,
		ReaderID:   r.ReaderID,
		Location:   r.Location,
		Direction:  r.Direction,
		Outcome:    r.Outcome,
		Reason:     r.Reason,
		OccurredAt: formatTime(r.OccurredAt),
		TimeIn:     formatTimePtr(r.TimeIn),
		TimeOut:    formatTimePtr(r.TimeOut),
	}
}

func readerFromRecord(r store.ReaderRecord) types.Reader {
	return types.Reader{
		ReaderID:     r.ReaderID,
		Name:         r.Name,
		Location:     r.Location,
		Status:       r.Status,
		LastSeen:     formatTimePtr(r.LastSeen),
		LastIP:       r.LastIP,
		LastFirmware: r.LastFirmware,
	}
}

func transactionFromRecord(r store.TransactionRecord) types.Transaction {
	return types.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        r.Type,
		AmountCents: r.AmountCents,
		Description: r.Description,
		Reference:   r.Reference,
		Status:      r.Status,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

// parseOptionalTimestamp parses a device-reported timestamp. Returns nil if
// the string is empty or unparseable.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
