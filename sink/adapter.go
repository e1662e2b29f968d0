package sink

import (
	"fmt"
	"sort"
)

// Block is the row builder handed to a RowWriter. OfferValue reports whether
// value was admitted for field at row; a false return means the row is dead.
type Block interface {
	OfferValue(field string, row int, value any) bool
}

// RowWriter materializes one row into b and returns how many rows it
// emitted (0 or 1). The sink keeps the row only when 1 is returned.
type RowWriter func(b Block, row int) (int, error)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error         // driver-specific config ⇒ struct
	WriteRows(w RowWriter) error // one call per candidate row
	Close() error                // flushes; idempotent
}

// Stats is optional; sinks that count their rows implement Counter.
type Stats struct {
	Written  int64
	Rejected int64
}

type Counter interface {
	Stats() Stats
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// Kinds lists the registered sink names.
func Kinds() []string {
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
