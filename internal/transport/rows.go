package transport

import (
	"github.com/apache/arrow-go/v18/arrow"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"kafkasplit/internal/handler"
)

// sendRows streams every row of rec as a {row:{...}} message.
func sendRows(stream grpc.ServerStream, rec arrow.Record) error {
	cols := rec.Columns()
	for i := 0; i < int(rec.NumRows()); i++ {
		fields := make(map[string]*structpb.Value, len(cols))
		for j, col := range cols {
			fields[rec.ColumnName(j)] = cell(col, i)
		}
		msg := &structpb.Struct{Fields: map[string]*structpb.Value{
			"row": structpb.NewStructValue(&structpb.Struct{Fields: fields}),
		}}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

func cell(col arrow.Array, i int) *structpb.Value {
	if col.IsNull(i) {
		return structpb.NewNullValue()
	}
	v, err := structpb.NewValue(col.GetOneForMarshal(i))
	if err != nil {
		return structpb.NewStringValue(col.ValueStr(i))
	}
	return v
}

func resultMessage(res handler.Result) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"result": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"outcome":     structpb.NewStringValue(res.Outcome.String()),
			"polls":       structpb.NewNumberValue(float64(res.Polls)),
			"empty_polls": structpb.NewNumberValue(float64(res.EmptyPolls)),
			"records":     structpb.NewNumberValue(float64(res.Records)),
			"rows":        structpb.NewNumberValue(float64(res.Rows)),
			"rejected":    structpb.NewNumberValue(float64(res.Rejected)),
			"last_offset": structpb.NewNumberValue(float64(res.LastOffset)),
		}}),
	}}
}
