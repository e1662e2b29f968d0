// Package handler reads one Kafka split into a row sink.
//
// A split read assigns a single partition to a groupless consumer, seeks to
// the split's start offset and polls until one of four terminal conditions:
// the log is empty, the query stopped running, too many polls came back
// empty, or the record at endOffset-1 was projected.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kafkasplit/internal/logging"
	"kafkasplit/internal/schema"
	"kafkasplit/internal/telemetry"
	"kafkasplit/sink"
	"kafkasplit/source/kafka"
)

type Outcome int

const (
	OutcomeEmptyLog Outcome = iota + 1
	OutcomeCancelled
	OutcomeExhausted
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmptyLog:
		return "empty_log"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCompleted:
		return "completed"
	}
	return "unknown"
}

// Split carries the planner's opaque properties.
type Split struct {
	Properties map[string]string
}

type ReadRequest struct {
	Split  Split
	Schema schema.Topic // decoding schema of the split's topic
}

type Result struct {
	Outcome    Outcome
	Polls      int
	EmptyPolls int
	Records    int   // records handed to the projector
	Rows       int64 // rows the sink kept
	Rejected   int64
	LastOffset int64 // -1 when nothing was read
}

// ConsumerFactory opens a consumer decoding records with the topic schema.
type ConsumerFactory func(schema.Topic) (kafka.Consumer, error)

type Options struct {
	PollTimeout   time.Duration // default 1s
	MaxEmptyPolls int           // default 3
	EmptyMode     kafka.EmptyPollMode
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
}

type RecordHandler struct {
	open ConsumerFactory
	opts Options
}

func NewRecordHandler(open ConsumerFactory, opts Options) *RecordHandler {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	if opts.MaxEmptyPolls <= 0 {
		opts.MaxEmptyPolls = 3
	}
	if opts.EmptyMode == "" {
		opts.EmptyMode = kafka.EmptyPollCumulative
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("handler")
	}
	return &RecordHandler{open: open, opts: opts}
}

// ReadWithConstraint reads the split in req into out. The consumer it opens
// is closed exactly once before returning. Cancellation, exhaustion and an
// empty log are reported through Result.Outcome, not as errors.
func (h *RecordHandler) ReadWithConstraint(ctx context.Context, out sink.Adapter, req ReadRequest, checker QueryStatusChecker) (res Result, err error) {
	res.LastOffset = -1
	sp, err := ParseSplitParam(req.Split.Properties)
	if err != nil {
		return res, err
	}
	if req.Schema.Name != sp.Topic {
		return res, fmt.Errorf("%w: split topic %q read with schema of %q", ErrInvalidSplit, sp.Topic, req.Schema.Name)
	}
	if checker == nil {
		checker = AlwaysRunning
	}

	log := h.opts.Logger.With("split", sp.String())
	start := time.Now()
	defer func() {
		outcome := res.Outcome.String()
		if err != nil {
			outcome = "error"
			log.Error("split read failed", "err", err, "polls", res.Polls, "rows", res.Rows)
		} else {
			log.Info("split read", "outcome", outcome, "polls", res.Polls, "empty_polls", res.EmptyPolls,
				"records", res.Records, "rows", res.Rows, "rejected", res.Rejected, "last_offset", res.LastOffset)
		}
		h.opts.Metrics.ObserveSplit(sp.Topic, outcome, time.Since(start))
	}()

	if sp.StartOffset == sp.EndOffset {
		res.Outcome = OutcomeCompleted
		return res, nil
	}

	cons, err := h.open(req.Schema)
	if err != nil {
		return res, fmt.Errorf("open consumer for %s: %w", sp, err)
	}
	defer func() {
		if cerr := cons.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("close consumer: %w", cerr)
			} else {
				log.Warn("close consumer", "err", cerr)
			}
		}
	}()

	tp := sp.TopicPartition()
	if err := cons.Assign(tp); err != nil {
		return res, fmt.Errorf("assign %s: %w", tp, err)
	}
	if err := cons.Seek(tp, sp.StartOffset); err != nil {
		return res, fmt.Errorf("seek %s to %d: %w", tp, sp.StartOffset, err)
	}
	ends, err := cons.EndOffsets(ctx, tp)
	if err != nil {
		return res, fmt.Errorf("end offsets %s: %w", tp, err)
	}
	if ends[tp] == 0 {
		res.Outcome = OutcomeEmptyLog
		return res, nil
	}

	res.Outcome, err = h.consume(ctx, cons, out, sp, checker, &res)
	return res, err
}

func (h *RecordHandler) consume(ctx context.Context, cons kafka.Consumer, out sink.Adapter, sp SplitParam, checker QueryStatusChecker, res *Result) (Outcome, error) {
	counter, _ := out.(sink.Counter)
	empty := 0
	for {
		if ctx.Err() != nil || !checker.IsQueryRunning() {
			return OutcomeCancelled, nil
		}

		polled := time.Now()
		recs, err := cons.Poll(ctx, h.opts.PollTimeout)
		res.Polls++
		h.opts.Metrics.ObservePoll(sp.Topic, len(recs), time.Since(polled))
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, nil
			}
			return 0, fmt.Errorf("poll %s: %w", sp.TopicPartition(), err)
		}

		if len(recs) == 0 {
			res.EmptyPolls++
			empty++
			if empty >= h.opts.MaxEmptyPolls {
				return OutcomeExhausted, nil
			}
			continue
		}
		if h.opts.EmptyMode == kafka.EmptyPollConsecutive {
			empty = 0
		}

		for _, rec := range recs {
			if rec.Offset < sp.StartOffset {
				// compressed batches may start before the seek offset
				continue
			}
			if rec.Offset >= sp.EndOffset {
				return OutcomeCompleted, nil
			}
			if err := h.project(out, counter, rec, res); err != nil {
				return 0, err
			}
			if rec.Offset >= sp.EndOffset-1 {
				return OutcomeCompleted, nil
			}
		}
	}
}

func (h *RecordHandler) project(out sink.Adapter, counter sink.Counter, rec kafka.Record, res *Result) error {
	var before sink.Stats
	if counter != nil {
		before = counter.Stats()
	}
	n, err := Project(out, rec)
	if err != nil {
		return fmt.Errorf("project %s@%d: %w", rec.TopicPartition, rec.Offset, err)
	}
	res.Records++
	res.LastOffset = rec.Offset

	written := n == 1
	if counter != nil {
		written = counter.Stats().Written > before.Written
	}
	if written {
		res.Rows++
	} else {
		res.Rejected++
	}
	h.opts.Metrics.ObserveRow(rec.Topic, written)
	return nil
}

// IsInvalidSplit reports whether err came from a malformed split.
func IsInvalidSplit(err error) bool { return errors.Is(err, ErrInvalidSplit) }
