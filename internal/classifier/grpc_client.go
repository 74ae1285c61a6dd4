// Package classifier talks to the upstream intent classification service.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/printdesk/internal/agent"
)

// ClassifyMethod is the full gRPC method name of the classifier's unary call.
const ClassifyMethod = "/printdesk.classifier.v1.IntentClassifier/Classify"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	// ErrMalformedResponse is returned when the classifier reply lacks an intent type.
	ErrMalformedResponse = errors.New("malformed classifier response")
)

// Config holds configuration for the gRPC client.
type Config struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration

	// DialOptions are appended to the defaults, e.g. a custom dialer in tests.
	DialOptions []grpc.DialOption
}

// DefaultConfig returns default configuration for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   3 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcClient classifies messages through the upstream service.
type GrpcClient struct {
	conn    *grpc.ClientConn
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrpcClient connects to the classifier and waits until the connection is
// ready, so a bad address fails at startup.
func NewGrpcClient(ctx context.Context, cfg Config, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("classifier address is required")
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client for %s: %w", cfg.Address, err)
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("classifier at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("connected to intent classifier", "address", cfg.Address)

	return &GrpcClient{
		conn:    conn,
		addr:    cfg.Address,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Classify sends message to the classifier and decodes the returned intent.
func (c *GrpcClient) Classify(ctx context.Context, message string) (agent.Intent, error) {
	req, err := structpb.NewStruct(map[string]any{"message": message})
	if err != nil {
		return agent.Intent{}, fmt.Errorf("build classify request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, ClassifyMethod, req, resp); err != nil {
		return agent.Intent{}, fmt.Errorf("classify: %w", err)
	}
	return decodeIntent(message, resp)
}

func decodeIntent(message string, resp *structpb.Struct) (agent.Intent, error) {
	fields := resp.GetFields()

	intentType := fields["type"].GetStringValue()
	if intentType == "" {
		return agent.Intent{}, fmt.Errorf("%w: missing type", ErrMalformedResponse)
	}

	confidence := fields["confidence"].GetNumberValue()
	if math.IsNaN(confidence) || confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var slots map[string]string
	if raw := fields["slots"].GetStructValue(); raw != nil {
		slots = make(map[string]string, len(raw.GetFields()))
		for k, v := range raw.GetFields() {
			switch kind := v.GetKind().(type) {
			case *structpb.Value_StringValue:
				slots[k] = kind.StringValue
			case *structpb.Value_NumberValue:
				slots[k] = formatNumber(kind.NumberValue)
			case *structpb.Value_BoolValue:
				slots[k] = fmt.Sprintf("%t", kind.BoolValue)
			}
		}
	}

	return agent.NewIntent(intentType, message, confidence, slots), nil
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
