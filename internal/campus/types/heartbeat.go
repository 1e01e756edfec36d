package types

type HeartbeatRequest struct {
	ReaderID        string `json:"reader_id"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	RSSIDbm         *int   `json:"rssi_dbm,omitempty"`
	IP              string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	ReaderID   string `json:"reader_id"`
	Location   string `json:"location,omitempty"`
	ServerTime string `json:"server_time"`
}

const (
	ReaderActive      = "active"
	ReaderInactive    = "inactive"
	ReaderMaintenance = "maintenance"
)

type Reader struct {
	ReaderID     string `json:"reader_id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Status       string `json:"status"`
	LastSeen     string `json:"last_seen,omitempty"`
	LastIP       string `json:"last_ip,omitempty"`
	LastFirmware string `json:"last_firmware,omitempty"`
}

type ReaderInput struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Status   string `json:"status"`
}
