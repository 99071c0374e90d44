package database

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is one row as a column name to scalar value mapping.
type Record map[string]any

// Filter is a set of column to exact-match value conditions, ANDed together.
// A nil value matches NULL.
type Filter map[string]any

// Page limits a listing. A zero Limit returns every row.
type Page struct {
	Limit  int
	Offset int
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// quoteIdent quotes a validated identifier. Backticks are accepted by both
// MySQL and SQLite.
func quoteIdent(name string) string {
	return "`" + name + "`"
}

// checkScalar rejects anything that is not a plain column value.
func checkScalar(col string, v any) error {
	switch v.(type) {
	case nil, string, []byte, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	default:
		return fmt.Errorf("%w: column %s has non-scalar type %T", ErrInvalidValue, col, v)
	}
}

// normalize converts driver values into the Record scalar set. MySQL returns
// most columns as []byte.
func normalize(rec map[string]any) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the column as a string, or "" when missing or NULL.
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an int64, or 0 when missing, NULL or
// unparsable. Values beyond the int64 range saturate. Floats truncate.
func (r Record) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return clampUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return clampUint(v)
	case float32:
		return clampFloat(float64(v))
	case float64:
		return clampFloat(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		return Record{col: string(v)}.Int64(col)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampFloat(f)
		}
	}
	return 0
}

func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func clampFloat(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// Float64 returns the column as a float64, or 0 when missing, NULL or unparsable.
func (r Record) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		return Record{col: string(v)}.Float64(col)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

// Bool returns the column as a bool. Numeric columns are true when non-zero.
func (r Record) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
		return r.Int64(col) != 0
	default:
		return r.Int64(col) != 0
	}
}

// IsNull reports whether the column is missing or NULL.
func (r Record) IsNull(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time returns the column as a time.Time, parsing text timestamps.
func (r Record) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}
