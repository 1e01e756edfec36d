package types

const (
	TxDeposit        = "deposit"
	TxWithdrawal     = "withdrawal"
	TxServicePayment = "service_payment"

	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
)

type Transaction struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type TopUpRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Phone       string `json:"phone,omitempty"`
}

type WithdrawRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type PaymentCallback struct {
	Reference string `json:"reference"`
	Success   bool   `json:"success"`
}

type ServicePaymentRequest struct {
	CardID  string `json:"card_id"`
	Service string `json:"service"`
}

type WalletResult struct {
	Transaction  Transaction `json:"transaction"`
	BalanceCents int64       `json:"balance_cents"`
}
