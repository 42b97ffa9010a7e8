package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region types
// ObserveResult is the client view of one Observe call.
type ObserveResult struct {
	Symbol   string
	Region   partition.RegionID
	Novelty  float64
	Decision allocate.Decision
}
// #endregion types

// #region client-struct
// Client calls a remote adpc.v1.Core.
type Client struct {
	conn   *grpc.ClientConn
	cc     grpc.ClientConnInterface
	health healthpb.HealthClient
}
// #endregion client-struct

// #region constructor
// NewClient connects to an adpc server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithConn(conn)
	c.conn = conn
	return c, nil
}

// NewClientWithConn wraps an existing connection. Close is then a no-op; the
// caller owns cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, health: healthpb.NewHealthClient(cc)}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion constructor

func (c *Client) call(ctx context.Context, name string, fields map[string]*structpb.Value) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, &structpb.Struct{Fields: fields}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #region encode
// Encode fetches the fingerprint of symbol.
func (c *Client) Encode(ctx context.Context, symbol string) (fingerprint.Fingerprint, error) {
	resp, err := c.call(ctx, "Encode", map[string]*structpb.Value{"symbol": structpb.NewStringValue(symbol)})
	if err != nil {
		return nil, fmt.Errorf("encode rpc: %w", err)
	}
	return fingerprintFrom(resp.GetFields()["fingerprint"])
}

// EncodePhrase fetches the mean fingerprint of text's tokens.
func (c *Client) EncodePhrase(ctx context.Context, text string) (fingerprint.Fingerprint, error) {
	resp, err := c.call(ctx, "EncodePhrase", map[string]*structpb.Value{"text": structpb.NewStringValue(text)})
	if err != nil {
		return nil, fmt.Errorf("encode phrase rpc: %w", err)
	}
	return fingerprintFrom(resp.GetFields()["fingerprint"])
}
// #endregion encode

// #region partition
func (c *Client) Region(ctx context.Context, v fingerprint.Fingerprint) (partition.RegionID, error) {
	resp, err := c.call(ctx, "Region", map[string]*structpb.Value{"fingerprint": fingerprintValue(v)})
	if err != nil {
		return "", fmt.Errorf("region rpc: %w", err)
	}
	return partition.RegionID(resp.GetFields()["region"].GetStringValue()), nil
}

func (c *Client) Nearby(ctx context.Context, v fingerprint.Fingerprint, k int) ([]partition.RegionID, error) {
	resp, err := c.call(ctx, "Nearby", map[string]*structpb.Value{
		"fingerprint": fingerprintValue(v),
		"k":           structpb.NewNumberValue(float64(k)),
	})
	if err != nil {
		return nil, fmt.Errorf("nearby rpc: %w", err)
	}
	return regionsFrom(resp.GetFields()["regions"]), nil
}

// Similarity compares two symbols server-side.
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	resp, err := c.call(ctx, "Similarity", map[string]*structpb.Value{
		"a": structpb.NewStringValue(a),
		"b": structpb.NewStringValue(b),
	})
	if err != nil {
		return 0, fmt.Errorf("similarity rpc: %w", err)
	}
	return resp.GetFields()["similarity"].GetNumberValue(), nil
}
// #endregion partition

// #region familiarity
func (c *Client) Novelty(ctx context.Context, region partition.RegionID, v fingerprint.Fingerprint) (float64, error) {
	resp, err := c.call(ctx, "Novelty", map[string]*structpb.Value{
		"region":      structpb.NewStringValue(string(region)),
		"fingerprint": fingerprintValue(v),
	})
	if err != nil {
		return 0, fmt.Errorf("novelty rpc: %w", err)
	}
	return resp.GetFields()["novelty"].GetNumberValue(), nil
}

func (c *Client) Record(ctx context.Context, region partition.RegionID, v fingerprint.Fingerprint) error {
	_, err := c.call(ctx, "Record", map[string]*structpb.Value{
		"region":      structpb.NewStringValue(string(region)),
		"fingerprint": fingerprintValue(v),
	})
	if err != nil {
		return fmt.Errorf("record rpc: %w", err)
	}
	return nil
}
// #endregion familiarity

// #region allocation
// Allocate requests an allocation decision. threshold ≤ 0 uses the server's
// configured growth threshold.
func (c *Client) Allocate(ctx context.Context, key string, v fingerprint.Fingerprint, novelty float64, threshold int) (allocate.Decision, error) {
	fields := map[string]*structpb.Value{
		"key":         structpb.NewStringValue(key),
		"fingerprint": fingerprintValue(v),
		"novelty":     structpb.NewNumberValue(novelty),
	}
	if threshold > 0 {
		fields["growth_threshold"] = structpb.NewNumberValue(float64(threshold))
	}
	resp, err := c.call(ctx, "Allocate", fields)
	if err != nil {
		return allocate.Decision{}, fmt.Errorf("allocate rpc: %w", err)
	}
	return decisionFrom(resp.GetFields()["decision"]), nil
}

// Observe runs symbol through the remote pipeline.
func (c *Client) Observe(ctx context.Context, symbol string) (ObserveResult, error) {
	resp, err := c.call(ctx, "Observe", map[string]*structpb.Value{"symbol": structpb.NewStringValue(symbol)})
	if err != nil {
		return ObserveResult{}, fmt.Errorf("observe rpc: %w", err)
	}
	f := resp.GetFields()
	return ObserveResult{
		Symbol:   f["symbol"].GetStringValue(),
		Region:   partition.RegionID(f["region"].GetStringValue()),
		Novelty:  f["novelty"].GetNumberValue(),
		Decision: decisionFrom(f["decision"]),
	}, nil
}
// #endregion allocation

// #region health
// Serving reports whether the server marks adpc.v1.Core as serving.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("health rpc: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
// #endregion health
