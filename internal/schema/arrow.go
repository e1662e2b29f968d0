package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ArrowType is the column type used for t in an output block. DECIMAL is
// carried as a 64-bit float.
func (t Type) ArrowType() arrow.DataType {
	switch t {
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case TypeTinyInt:
		return arrow.PrimitiveTypes.Int8
	case TypeSmallInt:
		return arrow.PrimitiveTypes.Int16
	case TypeInteger:
		return arrow.PrimitiveTypes.Int32
	case TypeBigInt:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case TypeDouble, TypeDecimal:
		return arrow.PrimitiveTypes.Float64
	case TypeDate:
		return arrow.FixedWidthTypes.Date32
	case TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema returns the block layout rows of this topic are written into.
func (t Topic) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, arrow.Field{Name: f.Name, Type: f.Type.ArrowType(), Nullable: true})
	}
	md := arrow.NewMetadata([]string{"topic", "data_format"}, []string{t.Name, string(t.DataFormat)})
	return arrow.NewSchema(fields, &md)
}
