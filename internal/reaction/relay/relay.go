// Package relay forwards transitions to a remote reactor over gRPC.
package relay

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/resilience"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

func init() {
	module.Register("relay", New)
}

// Relay is the gRPC forwarding module.
type Relay struct {
	addr     string
	dialOpts []grpc.DialOption
	retry    resilience.RetryConfig

	conn *grpc.ClientConn
}

// New creates the relay module for cfg.Relay.Addr.
func New(cfg *config.Config) (module.Module, error) {
	if cfg.Relay.Addr == "" {
		return nil, apperr.New(apperr.CodeConfigInvalid, "RELAY_ADDR is empty")
	}
	return &Relay{
		addr:  cfg.Relay.Addr,
		retry: resilience.ConnectRetryConfig(),
	}, nil
}

func (r *Relay) Title() string { return "relay" }

// BreakerConfig selects the remote-service breaker settings.
func (r *Relay) BreakerConfig() resilience.Config { return resilience.StrictConfig() }

// Initialize connects and waits for the reactor to report SERVING.
func (r *Relay) Initialize(ctx context.Context) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, r.dialOpts...)

	conn, err := grpc.NewClient(r.addr, opts...)
	if err != nil {
		return apperr.Wrapf(err, apperr.CodeConfigInvalid, "relay address %s", r.addr)
	}
	r.conn = conn

	health := healthpb.NewHealthClient(conn)
	return resilience.Retry(ctx, r.retry, func() error {
		hctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
		defer cancel()
		resp, err := health.Check(hctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return apperr.FromGRPCError(err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return apperr.Newf(apperr.CodeUnavailable, "reactor at %s is %s", r.addr, resp.GetStatus())
		}
		trace.Logger(ctx).Info("relay connected", "addr", r.addr)
		return nil
	})
}

func (r *Relay) OnStarted(ctx context.Context, d screen.Display) error {
	return r.notify(ctx, map[string]any{
		"kind":         module.Started.String(),
		"display_id":   d.ID,
		"display_name": d.Name,
		"x":            d.Bounds.X,
		"y":            d.Bounds.Y,
		"width":        d.Bounds.Width,
		"height":       d.Bounds.Height,
		"at":           time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Relay) OnEnded(ctx context.Context) error {
	return r.notify(ctx, map[string]any{
		"kind": module.Ended.String(),
		"at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (r *Relay) notify(ctx context.Context, fields map[string]any) error {
	if r.conn == nil {
		return apperr.New(apperr.CodeUnavailable, "relay not initialized")
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "encode event")
	}
	if err := r.conn.Invoke(ctx, NotifyMethod, req, &emptypb.Empty{}); err != nil {
		return apperr.FromGRPCError(err)
	}
	return nil
}

// Close closes the gRPC connection.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
