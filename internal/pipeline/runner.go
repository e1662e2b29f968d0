package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"kafkasplit/internal/handler"
	"kafkasplit/internal/schema"
	"kafkasplit/internal/spec"
	"kafkasplit/sink"
	"kafkasplit/sink/columnar"
	kafkasink "kafkasplit/sink/kafka"
	"kafkasplit/sink/stdout"
)

var ErrUnknownTopic = errors.New("unknown topic")

// Runner reads splits of the cataloged topics. It is safe for concurrent
// use; every read gets its own consumer and sink.
type Runner struct {
	handler *handler.RecordHandler
	catalog schema.Catalog
	sink    spec.SinkSpec
	spec    spec.File
}

func NewRunner(h *handler.RecordHandler, cat schema.Catalog, s spec.SinkSpec) *Runner {
	if s.Kind == "" {
		s.Kind = "arrow"
	}
	return &Runner{handler: h, catalog: cat, sink: s}
}

// Spec is the engine spec the runner was compiled from.
func (r *Runner) Spec() spec.File { return r.spec }

func (r *Runner) Topics() []string {
	out := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Schema returns the decoding schema of topic.
func (r *Runner) Schema(topic string) (schema.Topic, error) {
	t, ok := r.catalog.Lookup(topic)
	if !ok {
		return schema.Topic{}, fmt.Errorf("%w %q", ErrUnknownTopic, topic)
	}
	return t, nil
}

// ReadTo reads the split described by props into out. The caller owns out.
func (r *Runner) ReadTo(ctx context.Context, props map[string]string, out sink.Adapter, checker handler.QueryStatusChecker) (handler.Result, error) {
	t, err := r.Schema(props[handler.PropTopic])
	if err != nil {
		return handler.Result{LastOffset: -1}, err
	}
	req := handler.ReadRequest{Split: handler.Split{Properties: props}, Schema: t}
	return r.handler.ReadWithConstraint(ctx, out, req, checker)
}

// Read reads the split through a sink of the configured kind. With the
// arrow sink, constraints filter rows and onBlock receives the blocks.
func (r *Runner) Read(ctx context.Context, props map[string]string, constraints map[string]columnar.Constraint, onBlock func(arrow.Record) error, checker handler.QueryStatusChecker) (res handler.Result, err error) {
	res.LastOffset = -1
	t, err := r.Schema(props[handler.PropTopic])
	if err != nil {
		return res, err
	}
	out, err := r.newSink(t, constraints, onBlock)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close sink: %w", cerr))
		}
	}()
	return r.ReadTo(ctx, props, out, checker)
}

func (r *Runner) newSink(t schema.Topic, constraints map[string]columnar.Constraint, onBlock func(arrow.Record) error) (sink.Adapter, error) {
	out, err := sink.NewAdapter(r.sink.Kind)
	if err != nil {
		return nil, err
	}
	switch r.sink.Kind {
	case "arrow":
		err = out.Configure(columnar.Config{
			Schema:      t.ArrowSchema(),
			MaxRows:     r.sink.MaxRows,
			Constraints: constraints,
			OnBlock:     onBlock,
		})
	case "stdout":
		err = out.Configure(stdout.Config{PrintCounter: r.sink.PrintCounter})
	case "kafka":
		k := r.sink.Kafka
		err = out.Configure(kafkasink.Config{Brokers: k.Brokers, Topic: k.Topic, Acks: k.Acks, KeyBy: k.KeyBy})
	default:
		err = fmt.Errorf("no config block for sink %q", r.sink.Kind)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
