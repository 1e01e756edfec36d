package httpapi

import (
	"github.com/aengwo/rfid-project/internal/campus/types"
)

// Field numbers of the reader protocol messages (gatehouse.v1).

// ── Scan ─────────────────────────────────────────────────────────────────────

const (
	scanReqCardID      = 1
	scanReqLocation    = 2
	scanReqDirection   = 3
	scanReqReaderID    = 4
	scanReqRequestedAt = 5

	scanRespGranted      = 1
	scanRespReason       = 2
	scanRespCardID       = 3
	scanRespLocation     = 4
	scanRespDirection    = 5
	scanRespEventID      = 6
	scanRespUserName     = 7
	scanRespAccessLevel  = 8
	scanRespBalanceCents = 9
	scanRespServerTime   = 10
)

func scanRequestFromProto(m wireMessage) types.ScanRequest {
	return types.ScanRequest{
		CardID:      m.str(scanReqCardID),
		Location:    m.str(scanReqLocation),
		Direction:   m.str(scanReqDirection),
		ReaderID:    m.str(scanReqReaderID),
		RequestedAt: m.str(scanReqRequestedAt),
	}
}

func scanResponseToProto(r types.ScanResponse) []byte {
	var b wireBuilder
	b.boolean(scanRespGranted, r.Granted)
	b.str(scanRespReason, r.Reason)
	b.str(scanRespCardID, r.CardID)
	b.str(scanRespLocation, r.Location)
	b.str(scanRespDirection, r.Direction)
	b.varint(scanRespEventID, uint64(r.EventID))
	if r.User != nil {
		b.str(scanRespUserName, r.User.Name)
		b.varint(scanRespAccessLevel, uint64(r.User.AccessLevel))
		b.varint(scanRespBalanceCents, uint64(r.User.BalanceCents))
	}
	b.str(scanRespServerTime, r.ServerTime)
	return b.b
}

// ── Heartbeat ────────────────────────────────────────────────────────────────

const (
	hbReqReaderID        = 1
	hbReqFirmwareVersion = 2
	hbReqUptimeS         = 3
	hbReqRSSIDbm         = 4
	hbReqIP              = 5

	hbRespOK         = 1
	hbRespKnown      = 2
	hbRespReaderID   = 3
	hbRespLocation   = 4
	hbRespServerTime = 5
)

func heartbeatRequestFromProto(m wireMessage) types.HeartbeatRequest {
	return types.HeartbeatRequest{
		ReaderID:        m.str(hbReqReaderID),
		FirmwareVersion: m.str(hbReqFirmwareVersion),
		UptimeSeconds:   m.uint(hbReqUptimeS),
		RSSIDbm:         m.int32Ptr(hbReqRSSIDbm),
		IP:              m.str(hbReqIP),
	}
}

func heartbeatResponseToProto(r types.HeartbeatResponse) []byte {
	var b wireBuilder
	b.boolean(hbRespOK, r.OK)
	b.boolean(hbRespKnown, r.Known)
	b.str(hbRespReaderID, r.ReaderID)
	b.str(hbRespLocation, r.Location)
	b.str(hbRespServerTime, r.ServerTime)
	return b.b
}
