package grpcapi

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeDB struct{ down atomic.Bool }

func (f *fakeDB) PingContext(context.Context) error {
	if f.down.Load() {
		return errors.New("database is locked")
	}
	return nil
}

func startHealth(t *testing.T, db Pinger, opt Options) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	s := NewHealthServer(db, opt, nil)

	go func() { _ = s.Serve(context.Background(), lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ServingWhenDatabaseUp(t *testing.T) {
	c := startHealth(t, &fakeDB{}, Options{})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ServiceName))
}

func TestHealth_FlipsWithDatabase(t *testing.T) {
	db := &fakeDB{}
	c := startHealth(t, db, Options{CheckInterval: 10 * time.Millisecond})
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))

	db.down.Store(true)
	assert.Eventually(t, func() bool {
		return status(t, c, ServiceName) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	db.down.Store(false)
	assert.Eventually(t, func() bool {
		return status(t, c, ServiceName) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth_StopWithoutServe(t *testing.T) {
	s := NewHealthServer(&fakeDB{}, Options{}, nil)
	s.Stop()
	s.Stop()
}
