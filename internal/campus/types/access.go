package types

const (
	DirectionEntry = "entry"
	DirectionExit  = "exit"

	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// Deny reasons recorded on the event and returned to the reader.
const (
	ReasonUnregistered  = "unregistered card"
	ReasonInactive      = "inactive card"
	ReasonAlreadyInside = "already inside"
)

type ScanRequest struct {
	CardID      string `json:"card_id"`
	Location    string `json:"location,omitempty"`
	Direction   string `json:"direction,omitempty"` // "entry" | "exit"; inferred when empty
	ReaderID    string `json:"reader_id,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"` // optional device timestamp
}

type ScanUser struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	AccessLevel  int    `json:"access_level"`
	BalanceCents int64  `json:"balance_cents"`
}

type ScanResponse struct {
	Granted    bool      `json:"granted"`
	Reason     string    `json:"reason,omitempty"`
	CardID     string    `json:"card_id"`
	Location   string    `json:"location"`
	Direction  string    `json:"direction"`
	EventID    int64     `json:"event_id"`
	User       *ScanUser `json:"user,omitempty"`
	ServerTime string    `json:"server_time"`
}

// AccessEvent is one row of the access log as exposed over the API and
// published to subscribers.
type AccessEvent struct {
	ID         int64  `json:"id"`
	CardID     string `json:"card_id"`
	UserID     *int64 `json:"user_id,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	ReaderID   string `json:"reader_id,omitempty"`
	Location   string `json:"location"`
	Direction  string `json:"direction"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
	TimeIn     string `json:"time_in,omitempty"`
	TimeOut    string `json:"time_out,omitempty"`
}
