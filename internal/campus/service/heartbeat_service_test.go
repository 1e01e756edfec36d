package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aengwo/rfid-project/internal/campus/service"
	"github.com/aengwo/rfid-project/internal/campus/store/memory"
	"github.com/aengwo/rfid-project/internal/campus/types"
)

func TestHeartbeat_UnknownReaderAutoCreatedInactive(t *testing.T) {
	ms := memory.New()
	reg := service.NewReaderRegistry(ms)
	hb := service.NewHeartbeatService(ms, reg, nil)
	ctx := context.Background()

	resp, err := hb.Record(ctx, types.HeartbeatRequest{ReaderID: " reader-009 ", FirmwareVersion: "1.4.2", IP: "10.0.0.9"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !resp.OK || resp.Known || resp.ReaderID != "reader-009" {
		t.Fatalf("unexpected response %+v", resp)
	}

	readers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(readers) != 1 {
		t.Fatalf("expected 1 reader, got %d", len(readers))
	}
	r := readers[0]
	if r.Status != types.ReaderInactive || r.LastFirmware != "1.4.2" || r.LastIP != "10.0.0.9" || r.LastSeen == "" {
		t.Errorf("unexpected reader %+v", r)
	}
}

func TestHeartbeat_RegisteredReaderReportsLocation(t *testing.T) {
	ms := memory.New()
	reg := service.NewReaderRegistry(ms)
	hb := service.NewHeartbeatService(ms, reg, nil)
	ctx := context.Background()

	if _, err := reg.Register(ctx, "reader-001", types.ReaderInput{Name: "Main gate", Location: "Main Gate"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := hb.Record(ctx, types.HeartbeatRequest{ReaderID: "reader-001"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !resp.Known || resp.Location != "Main Gate" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHeartbeat_RequiresReaderID(t *testing.T) {
	ms := memory.New()
	hb := service.NewHeartbeatService(ms, service.NewReaderRegistry(ms), nil)

	_, err := hb.Record(context.Background(), types.HeartbeatRequest{ReaderID: "  "})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReaderRegistry_RegisterValidates(t *testing.T) {
	reg := service.NewReaderRegistry(memory.New())
	ctx := context.Background()

	if _, err := reg.Register(ctx, "", types.ReaderInput{}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("empty id: expected ErrInvalidInput, got %v", err)
	}
	if _, err := reg.Register(ctx, "reader-1", types.ReaderInput{Status: "broken"}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("bad status: expected ErrInvalidInput, got %v", err)
	}

	r, err := reg.Register(ctx, "reader-1", types.ReaderInput{Name: "Lab door", Location: "Lab", Status: "maintenance"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if r.Status != types.ReaderMaintenance {
		t.Errorf("expected maintenance, got %q", r.Status)
	}

	// Readers under maintenance do not supply a scan location.
	loc, err := reg.Location(ctx, "reader-1")
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != "" {
		t.Errorf("expected no location, got %q", loc)
	}
}
