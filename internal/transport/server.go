package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"kafkasplit/internal/handler"
	"kafkasplit/internal/logging"
	"kafkasplit/internal/pipeline"
	"kafkasplit/internal/schema"
	"kafkasplit/sink"
	"kafkasplit/sink/columnar"
)

const (
	ServiceName       = "kafkasplit.v1.RecordService"
	readRecordsMethod = "/" + ServiceName + "/ReadRecords"
)

// Reader reads one split into a sink; *pipeline.Runner implements it.
type Reader interface {
	Schema(topic string) (schema.Topic, error)
	ReadTo(ctx context.Context, props map[string]string, out sink.Adapter, checker handler.QueryStatusChecker) (handler.Result, error)
}

// RecordServer serves ReadRecords: one request, a stream of
// {row:{...}} messages, then a single {result:{...}}.
type RecordServer interface {
	ReadRecords(req *structpb.Struct, stream grpc.ServerStream) error
}

var recordServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "ReadRecords",
		Handler:       readRecordsHandler,
		ServerStreams: true,
	}},
	Metadata: "kafkasplit/v1/records.proto",
}

func readRecordsHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(RecordServer).ReadRecords(req, stream)
}

type Options struct {
	BlockRows     int // rows per arrow block before they are streamed
	MaxConcurrent int // concurrent split reads; 0 = unlimited
	Logger        *slog.Logger
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// StartServer listens on port and registers the record and health services.
func StartServer(port int, r Reader, opts Options) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return NewServer(lis, r, opts), nil
}

func NewServer(lis net.Listener, r Reader, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.For("transport")
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
	}
	s.grpc.RegisterService(&recordServiceDesc, &recordService{reader: r, opts: opts, limit: newLimiter(opts.MaxConcurrent)})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Serve() error {
	return s.grpc.Serve(s.lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// ----- RecordService -------------------------------------------------------

type recordService struct {
	reader Reader
	opts   Options
	limit  *limiter
}

func (rs *recordService) ReadRecords(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	doc := req.AsMap()

	props, err := splitProps(doc["split"])
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var cons map[string]columnar.Constraint
	if raw, ok := doc["constraints"].(map[string]any); ok {
		if cons, err = columnar.ParseConstraints(raw); err != nil {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	t, err := rs.reader.Schema(props[handler.PropTopic])
	if err != nil {
		return status.Error(codes.NotFound, err.Error())
	}
	if err := rs.limit.acquire(ctx); err != nil {
		return status.FromContextError(err).Err()
	}
	defer rs.limit.release()

	out, err := columnar.New(columnar.Config{
		Schema:      t.ArrowSchema(),
		MaxRows:     rs.opts.BlockRows,
		Constraints: cons,
		OnBlock: func(rec arrow.Record) error {
			return sendRows(stream, rec)
		},
	})
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	// the stream context is the liveness predicate
	alive := handler.CheckerFunc(func() bool { return ctx.Err() == nil })
	res, err := rs.reader.ReadTo(ctx, props, out, alive)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		rs.opts.Logger.Warn("read records", "split", props, "err", err)
		return toStatus(err)
	}
	return stream.SendMsg(resultMessage(res))
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, handler.ErrInvalidSplit):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pipeline.ErrUnknownTopic):
		return status.Error(codes.NotFound, err.Error())
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// splitProps flattens the request's split object into planner properties.
// Numbers are accepted for the numeric keys.
func splitProps(v any) (map[string]string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: split object is required", handler.ErrInvalidSplit)
	}
	props := make(map[string]string, len(m))
	for k, raw := range m {
		switch x := raw.(type) {
		case string:
			props[k] = x
		case float64:
			props[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("%w: %s has unsupported type %T", handler.ErrInvalidSplit, k, raw)
		}
	}
	return props, nil
}
