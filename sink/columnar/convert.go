package columnar

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// convert maps a decoded Go value onto the Go type appended to a column of
// type dt. Values that cannot be represented are rejected, never truncated.
func convert(dt arrow.DataType, v any) (any, error) {
	switch dt.ID() {
	case arrow.BOOL:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case arrow.INT8:
		n, err := asInt(v, math.MinInt8, math.MaxInt8)
		return int8(n), err
	case arrow.INT16:
		n, err := asInt(v, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case arrow.INT32:
		n, err := asInt(v, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case arrow.INT64:
		return asInt(v, math.MinInt64, math.MaxInt64)
	case arrow.FLOAT32:
		f, err := asFloat(v)
		return float32(f), err
	case arrow.FLOAT64:
		return asFloat(v)
	case arrow.DATE32:
		switch t := v.(type) {
		case time.Time:
			return arrow.Date32FromTime(t), nil
		case arrow.Date32:
			return t, nil
		}
	case arrow.TIMESTAMP:
		unit := dt.(*arrow.TimestampType).Unit
		switch t := v.(type) {
		case time.Time:
			return timestamp(t, unit), nil
		case arrow.Timestamp:
			return t, nil
		}
	case arrow.STRING:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
	default:
		return nil, fmt.Errorf("unsupported column type %s", dt)
	}
	return nil, fmt.Errorf("%T does not fit %s", v, dt)
}

func timestamp(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	case arrow.Nanosecond:
		return arrow.Timestamp(t.UnixNano())
	}
	return arrow.Timestamp(t.UnixMilli())
}

func asInt(v any, lo, hi int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || x < float64(lo) || x > float64(hi) || x >= 0x1p63 {
			return 0, fmt.Errorf("%v is not an integer in range", x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("%T is not an integer", v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

// numeric is the comparable magnitude of a converted column value, used by
// min/max constraints. Dates compare as days and timestamps in column units.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case arrow.Date32:
		return float64(x), true
	case arrow.Timestamp:
		return float64(x), true
	}
	f, err := asFloat(v)
	return f, err == nil
}
