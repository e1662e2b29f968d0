package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"kafkasplit/source/kafka"
)

// Split property keys written by the planner.
const (
	PropTopic       = "topic"
	PropPartition   = "partition"
	PropStartOffset = "startOffset"
	PropEndOffset   = "endOffset"
)

var ErrInvalidSplit = errors.New("invalid split")

// SplitParam is one topic-partition and the offset range [StartOffset, EndOffset).
type SplitParam struct {
	Topic       string
	Partition   int32
	StartOffset int64
	EndOffset   int64
}

// ParseSplitParam reads a split from its property map. Every problem is
// reported, each wrapping ErrInvalidSplit.
func ParseSplitParam(props map[string]string) (SplitParam, error) {
	var (
		sp   SplitParam
		errs []error
	)
	sp.Topic = strings.TrimSpace(props[PropTopic])
	if sp.Topic == "" {
		errs = append(errs, fmt.Errorf("%w: %s is required", ErrInvalidSplit, PropTopic))
	}

	part, err := parseInt(props, PropPartition, 32)
	if err != nil {
		errs = append(errs, err)
	}
	sp.Partition = int32(part)
	if sp.StartOffset, err = parseInt(props, PropStartOffset, 64); err != nil {
		errs = append(errs, err)
	}
	if sp.EndOffset, err = parseInt(props, PropEndOffset, 64); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 && sp.EndOffset < sp.StartOffset {
		errs = append(errs, fmt.Errorf("%w: %s %d is before %s %d",
			ErrInvalidSplit, PropEndOffset, sp.EndOffset, PropStartOffset, sp.StartOffset))
	}
	if len(errs) > 0 {
		return SplitParam{}, errors.Join(errs...)
	}
	return sp, nil
}

func parseInt(props map[string]string, key string, bits int) (int64, error) {
	raw, ok := props[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidSplit, key)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidSplit, key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidSplit, key, n)
	}
	return n, nil
}

// Properties is the inverse of ParseSplitParam.
func (sp SplitParam) Properties() map[string]string {
	return map[string]string{
		PropTopic:       sp.Topic,
		PropPartition:   strconv.FormatInt(int64(sp.Partition), 10),
		PropStartOffset: strconv.FormatInt(sp.StartOffset, 10),
		PropEndOffset:   strconv.FormatInt(sp.EndOffset, 10),
	}
}

func (sp SplitParam) TopicPartition() kafka.TopicPartition {
	return kafka.TopicPartition{Topic: sp.Topic, Partition: sp.Partition}
}

func (sp SplitParam) String() string {
	return fmt.Sprintf("%s[%d]@[%d,%d)", sp.Topic, sp.Partition, sp.StartOffset, sp.EndOffset)
}
