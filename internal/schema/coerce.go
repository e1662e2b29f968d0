package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Coerce converts a raw decoded value into the Go type of the field:
// bool, int8, int16, int32, int64, float32, float64, time.Time or string.
// A nil raw value, and an empty string for any non-VARCHAR field, yields nil.
func (f Field) Coerce(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && f.Type != TypeVarchar && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	switch f.Type {
	case TypeBoolean:
		return toBool(raw)
	case TypeTinyInt:
		n, err := toInt(raw, math.MinInt8, math.MaxInt8)
		return int8(n), err
	case TypeSmallInt:
		n, err := toInt(raw, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case TypeInteger:
		n, err := toInt(raw, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case TypeBigInt:
		return toInt(raw, math.MinInt64, math.MaxInt64)
	case TypeFloat:
		v, err := toFloat(raw)
		return float32(v), err
	case TypeDouble, TypeDecimal:
		return toFloat(raw)
	case TypeDate:
		return toTime(raw, f.FormatHint, time.DateOnly, 24*time.Hour)
	case TypeTimestamp:
		return toTime(raw, f.FormatHint, time.RFC3339Nano, time.Millisecond)
	case TypeVarchar:
		return toString(raw)
	}
	return nil, fmt.Errorf("unsupported type %q", f.Type)
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	return false, fmt.Errorf("cannot convert %T to BOOLEAN", raw)
}

func toInt(raw any, lo, hi int64) (int64, error) {
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case float32:
		return toInt(float64(v), lo, hi)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= 0x1p63 {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v.String())
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		n = i
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", raw)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a floating point number", raw)
}

// toTime accepts time.Time, strings in layout (or fallback), and integers
// counted in unit since the Unix epoch.
func toTime(raw any, layout, fallback string, unit time.Duration) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		if layout == "" {
			layout = fallback
		}
		t, err := time.Parse(layout, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	if unit == time.Millisecond {
		n, err := toInt(raw, math.MinInt64, math.MaxInt64)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot convert %T to a time: %w", raw, err)
		}
		return time.UnixMilli(n).UTC(), nil
	}
	// coarser units (days) are bounded to an int32 count, the range of a
	// DATE column
	n, err := toInt(raw, math.MinInt32, math.MaxInt32)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot convert %T to a time: %w", raw, err)
	}
	return time.Unix(n*int64(unit/time.Second), 0).UTC(), nil
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.Number:
		return v.String(), nil
	case bool, int, int8, int16, int32, int64, float32, float64:
		return fmt.Sprint(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("cannot convert %T to VARCHAR: %w", raw, err)
	}
	return string(b), nil
}
