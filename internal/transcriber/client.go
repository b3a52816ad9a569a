// Package transcriber bridges the session Controller's Transcriber interface to a remote
// recognition service over gRPC, without requiring protoc-generated stubs for the service's own
// request/response types.
package transcriber

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/vitalscribe/core/internal/coreerr"
	"github.com/vitalscribe/core/internal/domain"
	"github.com/vitalscribe/core/internal/resilience"
	"github.com/vitalscribe/core/internal/trace"
)

const transcribeMethod = "/vitalscribe.transcriber.v1.Transcriber/Transcribe"

// Config controls the bridge's connection and fault-tolerance behavior.
type Config struct {
	Addr                string
	DialTimeout         time.Duration
	CallTimeout         time.Duration
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
	BreakerConfig       resilience.Config
	RetryConfig         resilience.RetryConfig
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:                addr,
		DialTimeout:         3 * time.Second,
		CallTimeout:         10 * time.Second,
		KeepaliveTime:       10 * time.Second,
		KeepaliveTimeout:    3 * time.Second,
		HealthCheckInterval: 5 * time.Second,
		BreakerConfig:       resilience.DefaultConfig(),
		RetryConfig:         resilience.TranscriberRetryConfig(),
	}
}

// Bridge implements session.Transcriber against a remote recognition service.
type Bridge struct {
	cfg          Config
	conn         *grpc.ClientConn
	health       grpc_health_v1.HealthClient
	breaker      *resilience.Breaker
	healthCancel context.CancelFunc
}

// Dial opens a connection to the recognition service and starts its health-check loop.
func Dial(cfg Config) (*Bridge, error) {
	conn, err := grpc.NewClient(cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, coreerr.Wrap(err, coreerr.Unavailable, "dial transcriber service")
	}

	b := &Bridge{
		cfg:     cfg,
		conn:    conn,
		health:  grpc_health_v1.NewHealthClient(conn),
		breaker: resilience.New(cfg.BreakerConfig),
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.healthCancel = cancel
	go b.monitorHealth(ctx)

	return b, nil
}

// Close tears down the connection and stops the health-check loop.
func (b *Bridge) Close() error {
	if b.healthCancel != nil {
		b.healthCancel()
	}
	return b.conn.Close()
}

func (b *Bridge) monitorHealth(ctx context.Context) {
	interval := b.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := b.health.Check(checkCtx, &grpc_health_v1.HealthCheckRequest{})
			cancel()
			if err != nil {
				trace.Logger(ctx).Debug("transcriber health check failed", "error", err)
			}
		}
	}
}

// Transcribe satisfies session.Transcriber. It wraps the RPC in a circuit breaker and a bounded
// retry policy that only retries coreerr-classified transient failures.
func (b *Bridge) Transcribe(ctx context.Context, u domain.Utterance, trailingContext string) (domain.Segment, error) {
	ctx, span := trace.StartSpan(ctx, "transcriber_bridge_transcribe")
	defer span.End()
	span.SetAttr("utterance_id", u.ID)

	req := &transcribeRequest{
		UtteranceID:     u.ID,
		Samples:         u.Samples,
		SampleRate:      16000,
		StartedAt:       timestamppb.New(time.Now()),
		TrailingContext: trailingContext,
	}

	var resp transcribeResponse
	callErr := resilience.Retry(ctx, b.cfg.RetryConfig, func() error {
		return b.breaker.Execute(func() error {
			callCtx := ctx
			var cancel context.CancelFunc
			if b.cfg.CallTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, b.cfg.CallTimeout)
				defer cancel()
			}
			err := b.conn.Invoke(callCtx, transcribeMethod, req, &resp, grpc.CallContentSubtype(jsonContentSubtype))
			if err != nil {
				return coreerr.FromGRPCError(err)
			}
			return nil
		})
	})
	if callErr != nil {
		return domain.Segment{}, fmt.Errorf("transcriber bridge: %w", callErr)
	}

	return domain.Segment{
		ID:           u.ID,
		Text:         resp.Text,
		AvgLogProb:   resp.AvgLogProb,
		NoSpeechProb: resp.NoSpeechProb,
	}, nil
}
