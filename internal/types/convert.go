// Package types coerces the loosely-typed values database/sql hands back
// into the shapes the checkpoint and driver need.
package types

import "strconv"

// ToInt64 converts a scanned database value to int64. Numeric Go types are
// converted directly; []byte and string are parsed, since go-sql-driver/mysql
// returns unconverted integer columns as []byte outside of prepared
// statements. Unparseable or unsupported values yield 0.
func ToInt64(v any) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	case []byte:
		n, err := strconv.ParseInt(string(i), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(i, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
