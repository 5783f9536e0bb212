package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Additional-Code/orders/pkg/errorbank"
)

func TestHealthService(t *testing.T) {
	hs := NewHealth()
	server := NewServer(zap.NewNop(), hs)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoverUnaryConvertsPanic(t *testing.T) {
	interceptor := recoverUnary(zap.NewNop())
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Boom"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestToStatusMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		msg  string
	}{
		{name: "not found", err: errorbank.NotFound("Order not found"), code: codes.NotFound, msg: "Order not found"},
		{name: "wrapped bad request", err: fmt.Errorf("decode: %w", errorbank.BadRequest("invalid id")), code: codes.InvalidArgument, msg: "invalid id"},
		{name: "unauthorized", err: errorbank.Unauthorized("Invalid credentials"), code: codes.Unauthenticated, msg: "Invalid credentials"},
		{name: "forbidden", err: errorbank.Forbidden("admin only"), code: codes.PermissionDenied, msg: "admin only"},
		{name: "plain error hides cause", err: errors.New("dial tcp: refused"), code: codes.Internal, msg: "internal error"},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "existing status", err: status.Error(codes.Unavailable, "draining"), code: codes.Unavailable, msg: "draining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(toStatus(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, st.Message())
			}
		})
	}

	assert.NoError(t, toStatus(nil))
}
