package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

const (
	minTopUpCents   = 1000
	maxAmountCents  = 100_000_000
	defaultTxListed = 50
)

// ServicePrices is the catalog of card-payable campus services, in cents.
var ServicePrices = map[string]int64{
	"gym":  5000,
	"pool": 20000,
}

// Wallet manages user balances. Initiating the external payment for a
// top-up is not done here; the gateway's callback settles it via Settle.
type Wallet struct {
	store     store.WalletStore
	directory store.DirectoryStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewWallet(ws store.WalletStore, ds store.DirectoryStore, logger *zap.Logger) *Wallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wallet{store: ws, directory: ds, logger: logger, now: time.Now}
}

// TopUp records a pending deposit and returns it with its payment
// reference. The balance is unchanged until the deposit settles.
func (w *Wallet) TopUp(ctx context.Context, userID int64, req types.TopUpRequest) (types.WalletResult, error) {
	if req.AmountCents < minTopUpCents || req.AmountCents > maxAmountCents {
		return types.WalletResult{}, ErrInvalidAmount
	}
	user, err := w.directory.GetUser(ctx, userID)
	if err != nil {
		return types.WalletResult{}, mapStoreErr(err)
	}

	desc := "Wallet top-up"
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		desc += " from " + phone
	}
	rec, err := w.store.CreatePending(ctx, store.TransactionRecord{
		UserID:      userID,
		Type:        types.TxDeposit,
		AmountCents: req.AmountCents,
		Description: desc,
		Reference:   uuid.NewString(),
		CreatedAt:   w.now().UTC(),
	})
	if err != nil {
		return types.WalletResult{}, mapStoreErr(err)
	}
	w.logger.Info("top-up pending",
		zap.Int64("user_id", userID),
		zap.Int64("amount_cents", rec.AmountCents),
		zap.String("reference", rec.Reference))

	return types.WalletResult{Transaction: transactionFromRecord(rec), BalanceCents: user.BalanceCents}, nil
}

// Settle completes or fails a pending deposit. Settling the same reference
// twice is a conflict.
func (w *Wallet) Settle(ctx context.Context, cb types.PaymentCallback) (types.WalletResult, error) {
	ref := strings.TrimSpace(cb.Reference)
	if ref == "" {
		return types.WalletResult{}, ErrInvalidReference
	}
	rec, balance, err := w.store.SettleDeposit(ctx, ref, cb.Success, w.now().UTC())
	if err != nil {
		return types.WalletResult{}, mapStoreErr(err)
	}
	w.logger.Info("deposit settled",
		zap.String("reference", ref),
		zap.String("status", rec.Status),
		zap.Int64("user_id", rec.UserID))
	return types.WalletResult{Transaction: transactionFromRecord(rec), BalanceCents: balance}, nil
}

// Pay charges the card's owner for a catalog service. Only active users
// can pay, and the balance never goes negative.
func (w *Wallet) Pay(ctx context.Context, req types.ServicePaymentRequest) (types.WalletResult, error) {
	cardID, err := NormalizeCardID(req.CardID)
	if err != nil {
		return types.WalletResult{}, err
	}
	svc := strings.ToLower(strings.TrimSpace(req.Service))
	price, ok := ServicePrices[svc]
	if !ok {
		return types.WalletResult{}, ErrUnknownService
	}

	user, found, err := w.directory.LookupCard(ctx, cardID)
	if err != nil {
		return types.WalletResult{}, err
	}
	if !found || user.Status != types.UserActive {
		return types.WalletResult{}, ErrCardNotPayable
	}

	return w.debit(ctx, store.TransactionRecord{
		UserID:      user.ID,
		Type:        types.TxServicePayment,
		AmountCents: price,
		Description: "Payment for " + svc,
	})
}

func (w *Wallet) Withdraw(ctx context.Context, userID int64, req types.WithdrawRequest) (types.WalletResult, error) {
	if req.AmountCents <= 0 || req.AmountCents > maxAmountCents {
		return types.WalletResult{}, ErrInvalidAmount
	}
	return w.debit(ctx, store.TransactionRecord{
		UserID:      userID,
		Type:        types.TxWithdrawal,
		AmountCents: req.AmountCents,
		Description: "Withdrawal",
	})
}

func (w *Wallet) debit(ctx context.Context, rec store.TransactionRecord) (types.WalletResult, error) {
	rec.CreatedAt = w.now().UTC()
	out, balance, err := w.store.Debit(ctx, rec)
	if err != nil {
		return types.WalletResult{}, mapStoreErr(err)
	}
	w.logger.Info("wallet debit",
		zap.Int64("user_id", out.UserID),
		zap.String("type", out.Type),
		zap.Int64("amount_cents", out.AmountCents))
	return types.WalletResult{Transaction: transactionFromRecord(out), BalanceCents: balance}, nil
}

func (w *Wallet) Transactions(ctx context.Context, userID int64, limit int) ([]types.Transaction, error) {
	if _, err := w.directory.GetUser(ctx, userID); err != nil {
		return nil, mapStoreErr(err)
	}
	if limit <= 0 {
		limit = defaultTxListed
	}
	recs, err := w.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, transactionFromRecord(r))
	}
	return out, nil
}
