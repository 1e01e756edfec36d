package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aengwo/rfid-project/internal/campus/store"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
	registry       *ReaderRegistry
	logger         *zap.Logger
	now            func() time.Time
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *ReaderRegistry, logger *zap.Logger) *HeartbeatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeartbeatService{heartbeatStore: hs, registry: reg, logger: logger, now: time.Now}
}

// Record stores a reader heartbeat. Unknown readers are created inactive
// and reported with Known=false until an admin registers them.
func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	readerID := strings.TrimSpace(req.ReaderID)
	if readerID == "" {
		return types.HeartbeatResponse{}, ErrInvalidReaderID
	}

	rec, known, err := s.registry.Get(ctx, readerID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}

	now := s.now().UTC()
	if err := s.heartbeatStore.RecordHeartbeat(ctx, readerID, store.HeartbeatRecord{
		ReceivedAt: now,
		Request:    req,
	}); err != nil {
		return types.HeartbeatResponse{}, err
	}
	if !known {
		s.logger.Info("heartbeat from unregistered reader", zap.String("reader_id", readerID), zap.String("ip", req.IP))
	}

	return types.HeartbeatResponse{
		OK:         true,
		Known:      known,
		ReaderID:   readerID,
		Location:   rec.Location,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
