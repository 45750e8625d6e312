// Package sweepernotify notifies a co-located sidecar when the approval
// sweeper reclaims a timed-out request, so the sidecar can fold the
// event into its own metrics/tracing aggregation outside this process.
package sweepernotify

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// jsonCodec marshals gRPC messages as JSON instead of protobuf. There is
// no generated service stub here (see DESIGN.md) — ForceCodec lets a
// plain Go struct travel over the gRPC/HTTP2 transport without one.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

// ExpiredNotification is the payload sent for every reclaimed approval.
type ExpiredNotification struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}

// ack is the sidecar's empty acknowledgement.
type ack struct{}

// Client calls the sidecar's ApprovalExpired RPC over plaintext gRPC.
// Intended for a sidecar or localhost deployment only — see the
// teacher's GRPCLLMClient for the same assumption.
type Client struct {
	conn   *grpc.ClientConn
	method string
}

// NewClient dials addr with insecure transport credentials.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial sweepernotify sidecar %s: %w", addr, err)
	}
	return &Client{conn: conn, method: "/sweepernotify.Sidecar/ApprovalExpired"}, nil
}

// NotifyExpired sends one reclaim notification. Errors are the caller's
// to log-and-continue on; a sidecar outage must never block the sweep.
// Signature matches pkg/approval.ExpiredNotifier so *Client satisfies it
// without an adapter.
func (c *Client) NotifyExpired(ctx context.Context, requestID, kind, reason string) error {
	n := ExpiredNotification{RequestID: requestID, Kind: kind, Reason: reason}
	var resp ack
	return c.conn.Invoke(ctx, c.method, &n, &resp, grpc.ForceCodec(jsonCodec{}))
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
