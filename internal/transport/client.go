package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Summary is the final {result:{...}} message of a ReadRecords stream.
type Summary struct {
	Outcome    string
	Polls      int64
	EmptyPolls int64
	Records    int64
	Rows       int64
	Rejected   int64
	LastOffset int64
}

type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a RecordService at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error { return c.cc.Close() }

// Healthy reports whether the RecordService is SERVING.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.cc).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// ReadRecords reads one split, calling onRow for every streamed row.
// Cancelling ctx stops the server-side read.
func (c *Client) ReadRecords(ctx context.Context, split map[string]string, constraints map[string]any, onRow func(map[string]any) error) (Summary, error) {
	req, err := readRequest(split, constraints)
	if err != nil {
		return Summary{}, err
	}
	stream, err := c.cc.NewStream(ctx, &recordServiceDesc.Streams[0], readRecordsMethod)
	if err != nil {
		return Summary{}, err
	}
	if err := stream.SendMsg(req); err != nil {
		return Summary{}, err
	}
	if err := stream.CloseSend(); err != nil {
		return Summary{}, err
	}

	var sum Summary
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		if row := msg.GetFields()["row"].GetStructValue(); row != nil {
			if err := onRow(row.AsMap()); err != nil {
				return sum, err
			}
			continue
		}
		if res := msg.GetFields()["result"].GetStructValue(); res != nil {
			sum = summaryOf(res.AsMap())
		}
	}
}

func readRequest(split map[string]string, constraints map[string]any) (*structpb.Struct, error) {
	sp := make(map[string]any, len(split))
	for k, v := range split {
		sp[k] = v
	}
	doc := map[string]any{"split": sp}
	if len(constraints) > 0 {
		doc["constraints"] = constraints
	}
	req, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return req, nil
}

func summaryOf(m map[string]any) Summary {
	n := func(k string) int64 {
		f, _ := m[k].(float64)
		return int64(f)
	}
	outcome, _ := m["outcome"].(string)
	return Summary{
		Outcome:    outcome,
		Polls:      n("polls"),
		EmptyPolls: n("empty_polls"),
		Records:    n("records"),
		Rows:       n("rows"),
		Rejected:   n("rejected"),
		LastOffset: n("last_offset"),
	}
}
