// kafkasplit/sink/stdout/driver.go
package stdout

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"kafkasplit/sink"
)

/* ────────── config ────────── */
type Config struct {
	Out          io.Writer // nil → os.Stdout
	PrintCounter bool      `yaml:"print_counter"` // prepend seq#
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
	w   *bufio.Writer

	line  sink.JSONRow // row being built
	dead  bool
	seq   uint64
	stats sink.Stats
}

// New returns a stdout sink writing JSON lines to cfg.Out.
func New(cfg Config) (sink.Adapter, error) {
	d := &driver{}
	if err := d.Configure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	d.w = bufio.NewWriter(c.Out)
	return nil
}

// OfferValue appends "field":value to the current line. Values that JSON
// cannot encode are rejected.
func (d *driver) OfferValue(field string, row int, value any) bool {
	if d.dead || row != int(d.stats.Written) {
		d.dead = true
		return false
	}
	if err := d.line.Add(field, value); err != nil {
		d.dead = true
		return false
	}
	return true
}

func (d *driver) WriteRows(w sink.RowWriter) error {
	if d.w == nil {
		return fmt.Errorf("stdout-sink: not configured")
	}
	d.reset()
	n, err := w(d, int(d.stats.Written))
	if err != nil {
		return err
	}
	if n != 1 || d.dead {
		d.stats.Rejected++
		return nil
	}
	d.seq++
	if d.cfg.PrintCounter {
		fmt.Fprintf(d.w, "[sink %06d] ", d.seq)
	}
	d.w.Write(d.line.Bytes())
	d.w.WriteByte('\n')
	d.stats.Written++
	return nil
}

func (d *driver) reset() {
	d.line.Reset()
	d.dead = false
}

func (d *driver) Close() error {
	if d.w == nil {
		return nil
	}
	return d.w.Flush()
}

func (d *driver) Stats() sink.Stats { return d.stats }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
