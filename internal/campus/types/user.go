package types

const (
	UserActive   = "active"
	UserInactive = "inactive"
)

type User struct {
	ID           int64  `json:"id"`
	CardID       string `json:"card_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Status       string `json:"status"`
	AccessLevel  int    `json:"access_level"`
	BalanceCents int64  `json:"balance_cents"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	LastAccess   string `json:"last_access,omitempty"`
}

// UserInput is the create/update payload. Zero values mean "default" on
// create and "unchanged" on update.
type UserInput struct {
	CardID      string `json:"card_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status,omitempty"`
	AccessLevel int    `json:"access_level,omitempty"`
}

type UserPage struct {
	Users      []User `json:"users"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
}
