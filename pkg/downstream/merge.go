package downstream

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/jdziat/distexec/pkg/core"
)

// Merger combines the buckets of all sources, given in slot order.
type Merger func(buckets []core.Bucket) core.Bucket

// Concat appends the buckets in slot order.
func Concat(buckets []core.Bucket) core.Bucket {
	n := 0
	for _, b := range buckets {
		n += len(b)
	}
	out := make(core.Bucket, 0, n)
	for _, b := range buckets {
		out = append(out, b...)
	}
	return out
}

// SortedMerge merges buckets that are each sorted by the columns in orderBy.
// Rows comparing equal keep slot order.
func SortedMerge(orderBy []int) Merger {
	return func(buckets []core.Bucket) core.Bucket {
		out := Concat(buckets)
		slices.SortStableFunc(out, func(a, b core.Row) int {
			for _, col := range orderBy {
				if c := compareValues(valueAt(a, col), valueAt(b, col)); c != 0 {
					return c
				}
			}
			return 0
		})
		return out
	}
}

func valueAt(r core.Row, col int) any {
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}

// compareValues orders nil first, then by natural order for known types.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return cmp.Compare(ai, bi)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
