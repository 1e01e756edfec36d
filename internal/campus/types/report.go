package types

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD in the configured zone
	Count int64  `json:"count"`
}

type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type DailyTotals struct {
	TotalUsers  int64 `json:"total_users"`
	TodayEvents int64 `json:"today_events"`
	TodayDenied int64 `json:"today_denied"`
}

type Stats struct {
	DailyTotals
	Trend  []DayCount  `json:"trend"`
	Hourly []HourCount `json:"hourly"`
}

type Population struct {
	Location   string `json:"location"`
	Population int64  `json:"population"`
}

type Occupant struct {
	CardID   string `json:"card_id"`
	UserID   *int64 `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Location string `json:"location"`
	TimeIn   string `json:"time_in"`
}

// WeeklyPattern holds granted entries per weekday, Monday first.
type WeeklyPattern struct {
	Location string   `json:"location"`
	Days     [7]int64 `json:"days"`
}

type DwellHours struct {
	UserID int64   `json:"user_id"`
	Name   string  `json:"name"`
	CardID string  `json:"card_id"`
	Hours  float64 `json:"hours"`
}

type TrafficPoint struct {
	Date     string `json:"date"`
	Location string `json:"location"`
	Count    int64  `json:"count"`
}
