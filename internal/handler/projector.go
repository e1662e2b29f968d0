package handler

import (
	"kafkasplit/sink"
	"kafkasplit/source/kafka"
)

// Project writes rec as at most one row and returns the writer's row count.
// Fields are offered in record order; the first rejected field abandons the
// row with no further offers.
func Project(out sink.Adapter, rec kafka.Record) (int, error) {
	var rows int
	err := out.WriteRows(func(b sink.Block, row int) (int, error) {
		rows = 0
		for _, f := range rec.Fields {
			if !b.OfferValue(f.Name, row, f.Value) {
				return 0, nil
			}
		}
		rows = 1
		return 1, nil
	})
	return rows, err
}
