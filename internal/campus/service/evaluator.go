package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/notify"
	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
	"github.com/aengwo/rfid-project/internal/metrics"
)

const maxLocationLen = 100

type EvaluatorOptions struct {
	// ScanTimeout bounds one evaluation including the store transaction.
	// Zero means no deadline beyond the caller's.
	ScanTimeout time.Duration
	Publisher   notify.Publisher
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Evaluator decides whether a scanned card is granted and records the
// outcome in the access log.
type Evaluator struct {
	log       store.AccessLogStore
	readers   *ReaderRegistry
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewEvaluator(ls store.AccessLogStore, readers *ReaderRegistry, opt EvaluatorOptions) *Evaluator {
	e := &Evaluator{
		log:       ls,
		readers:   readers,
		publisher: opt.Publisher,
		metrics:   opt.Metrics,
		logger:    opt.Logger,
		timeout:   opt.ScanTimeout,
		now:       time.Now,
	}
	if e.publisher == nil {
		e.publisher = notify.Noop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Evaluate runs one scan: lookup, interval check, direction inference and
// the log append happen in a single store transaction. Denials are normal
// results; an error means nothing was recorded.
func (e *Evaluator) Evaluate(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error) {
	start := e.now()

	cardID, err := NormalizeCardID(req.CardID)
	if err != nil {
		return types.ScanResponse{}, err
	}
	direction, err := normalizeDirection(req.Direction)
	if err != nil {
		return types.ScanResponse{}, err
	}
	readerID := strings.TrimSpace(req.ReaderID)
	location := strings.TrimSpace(req.Location)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if location == "" && readerID != "" && e.readers != nil {
		location, err = e.readers.Location(ctx, readerID)
		if err != nil {
			return types.ScanResponse{}, e.fail(cardID, fmt.Errorf("resolve reader location: %w", err))
		}
	}
	if location == "" || len(location) > maxLocationLen {
		return types.ScanResponse{}, ErrInvalidLocation
	}

	now := start.UTC()
	var (
		rec  store.AccessEventRecord
		user store.UserRecord
	)
	err = e.log.WithScanTx(ctx, func(ctx context.Context, tx store.ScanTx) error {
		u, found, err := tx.LookupCard(ctx, cardID)
		if err != nil {
			return err
		}
		open, inside, err := tx.OpenEntry(ctx, cardID, location)
		if err != nil {
			return err
		}

		d := direction
		if d == "" {
			d = types.DirectionEntry
			if inside {
				d = types.DirectionExit
			}
		}

		rec = store.AccessEventRecord{
			CardID:      cardID,
			ReaderID:    readerID,
			Location:    location,
			Direction:   d,
			Outcome:     types.OutcomeGranted,
			OccurredAt:  now,
			RequestedAt: parseOptionalTimestamp(req.RequestedAt),
		}
		if found {
			user = u
			id := u.ID
			rec.UserID = &id
			rec.UserName = u.Name
		}

		switch {
		case !found:
			rec.Outcome, rec.Reason = types.OutcomeDenied, types.ReasonUnregistered
		case u.Status != types.UserActive:
			rec.Outcome, rec.Reason = types.OutcomeDenied, types.ReasonInactive
		// An explicit direction is honored; only an omitted one is inferred.
		case d == types.DirectionEntry && inside:
			rec.Outcome, rec.Reason = types.OutcomeDenied, types.ReasonAlreadyInside
		}

		closeOpen := false
		if rec.Outcome == types.OutcomeGranted {
			switch {
			case d == types.DirectionEntry:
				rec.TimeIn = &now
			case inside:
				rec.TimeIn = open.TimeIn
				rec.TimeOut = &now
				closeOpen = true
			}
		}

		id, err := tx.AppendEvent(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id

		if closeOpen {
			if _, err := tx.CloseInterval(ctx, open.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.ScanResponse{}, e.fail(cardID, err)
	}

	granted := rec.Outcome == types.OutcomeGranted
	e.metrics.ObserveScan(rec.Outcome, rec.Direction, e.now().Sub(start))
	e.logger.Info("scan evaluated",
		zap.String("card_id", cardID),
		zap.String("location", location),
		zap.String("direction", rec.Direction),
		zap.Bool("granted", granted),
		zap.String("reason", rec.Reason),
		zap.Int64("event_id", rec.ID))

	e.afterCommit(ctx, readerID, rec)

	resp := types.ScanResponse{
		Granted:    granted,
		Reason:     rec.Reason,
		CardID:     cardID,
		Location:   location,
		Direction:  rec.Direction,
		EventID:    rec.ID,
		ServerTime: formatTime(now),
	}
	if rec.UserID != nil {
		resp.User = &types.ScanUser{
			ID:           user.ID,
			Name:         user.Name,
			AccessLevel:  user.AccessLevel,
			BalanceCents: user.BalanceCents,
		}
	}
	return resp, nil
}

func (e *Evaluator) fail(cardID string, err error) error {
	e.metrics.IncScanFailure()
	e.logger.Error("scan not recorded", zap.String("card_id", cardID), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// afterCommit runs the best-effort side effects of a recorded scan. The
// scan context may be close to its deadline, so they get their own.
func (e *Evaluator) afterCommit(ctx context.Context, readerID string, rec store.AccessEventRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if e.readers != nil && readerID != "" {
		if err := e.readers.NoteSeen(ctx, readerID); err != nil {
			e.logger.Warn("mark reader seen failed", zap.String("reader_id", readerID), zap.Error(err))
		}
	}
	if err := e.publisher.PublishAccessEvent(ctx, eventFromRecord(rec)); err != nil {
		e.metrics.IncPublishError()
		e.logger.Warn("publish access event failed", zap.Int64("event_id", rec.ID), zap.Error(err))
	}
}
