package profile

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

// Memory estimate constants, in bytes.
const (
	fixedWidthBytes   = 8
	stringOverhead    = 16
	otherValueBytes   = 16
	columnHeaderBytes = 128
)

// Stat keys.
const (
	StatMin  = "min"
	StatMax  = "max"
	StatMean = "mean"
	StatStd  = "std"
	StatP25  = "25%"
	StatP50  = "50%"
	StatP75  = "75%"
	StatTop  = "top"
	StatFreq = "freq"
)

// ColumnProfile describes a single column.
type ColumnProfile struct {
	Dtype        string         `json:"dtype"`
	NonNullCount int            `json:"non_null_count"`
	NullCount    int            `json:"null_count"`
	UniqueCount  int            `json:"unique_count"`
	MemoryUsage  int64          `json:"memory_usage"`
	Stats        map[string]any `json:"stats,omitempty"`
}

// TableProfile describes a whole table.
type TableProfile struct {
	TotalRows    int                      `json:"total_rows"`
	TotalColumns int                      `json:"total_columns"`
	ColumnInfo   map[string]ColumnProfile `json:"column_info"`
	MemoryUsage  int64                    `json:"memory_usage"`
	DtypesCount  map[string]int           `json:"dtypes_count"`
}

// Profile computes the profile of every column in t. A nil table profiles
// as an empty one.
func Profile(t *table.Table) TableProfile {
	if t == nil {
		t = table.Empty()
	}

	p := TableProfile{
		TotalRows:    t.Len(),
		TotalColumns: len(t.Columns),
		ColumnInfo:   make(map[string]ColumnProfile, len(t.Columns)),
		DtypesCount:  make(map[string]int),
	}
	for _, col := range t.Columns {
		cp := profileColumn(col, t.Values(col.Name))
		p.ColumnInfo[col.Name] = cp
		p.MemoryUsage += cp.MemoryUsage
		p.DtypesCount[col.Type]++
	}
	return p
}

// skeleton returns the all-zero profile used for tables without rows.
func skeleton(t *table.Table) TableProfile {
	p := TableProfile{
		TotalColumns: len(t.Columns),
		ColumnInfo:   make(map[string]ColumnProfile, len(t.Columns)),
		DtypesCount:  make(map[string]int),
	}
	for _, col := range t.Columns {
		p.ColumnInfo[col.Name] = ColumnProfile{Dtype: col.Type}
		p.DtypesCount[col.Type]++
	}
	return p
}

func profileColumn(col table.Column, raw []any) ColumnProfile {
	cp := ColumnProfile{
		Dtype:       col.Type,
		MemoryUsage: columnHeaderBytes,
	}

	unique := make(map[string]struct{})
	present := make([]any, 0, len(raw))
	rawPresent := make([]any, 0, len(raw))
	for _, v := range raw {
		norm := Normalize(v)
		cp.MemoryUsage += valueBytes(norm)
		if norm == nil {
			cp.NullCount++
			continue
		}
		cp.NonNullCount++
		norm = coerce(col.Type, norm)
		unique[uniqueKey(norm)] = struct{}{}
		present = append(present, norm)
		rawPresent = append(rawPresent, v)
	}
	cp.UniqueCount = len(unique)

	if len(present) == 0 {
		return cp
	}

	var stats map[string]any
	switch col.Type {
	case table.TypeInt, table.TypeFloat:
		stats = numericStats(col.Type, present)
	case table.TypeDatetime:
		stats = datetimeStats(rawPresent)
	case table.TypeString:
		stats = stringStats(present)
	case table.TypeBool:
		stats = topFreq(present)
	}
	if len(stats) > 0 {
		cp.Stats = stats
	}
	return cp
}

func valueBytes(v any) int64 {
	switch val := v.(type) {
	case nil:
		return otherValueBytes
	case int64, float64, bool:
		return fixedWidthBytes
	case string:
		return int64(len(val)) + stringOverhead
	default:
		return otherValueBytes
	}
}

func uniqueKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}

// coerce widens integers in a float column so 1 and 1.0 are the same value.
func coerce(dtype string, v any) any {
	if n, ok := v.(int64); ok && dtype == table.TypeFloat {
		return float64(n)
	}
	return v
}

func numericStats(dtype string, values []any) map[string]any {
	nums := make([]float64, 0, len(values))
	ints := make([]int64, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case int64:
			nums = append(nums, float64(n))
			ints = append(ints, n)
		case float64:
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil
	}
	sort.Float64s(nums)

	stats := make(map[string]any)
	if dtype == table.TypeInt && len(ints) == len(nums) {
		// Exact bounds; float64 cannot represent every int64.
		lo, hi := ints[0], ints[0]
		for _, n := range ints[1:] {
			lo = min(lo, n)
			hi = max(hi, n)
		}
		stats[StatMin] = lo
		stats[StatMax] = hi
	} else {
		setFloat(stats, StatMin, nums[0])
		setFloat(stats, StatMax, nums[len(nums)-1])
	}

	// Moments are taken on values scaled into [-1, 1] so that sums and
	// differences of large finite values cannot overflow.
	scale := max(math.Abs(nums[0]), math.Abs(nums[len(nums)-1]))
	if scale == 0 || math.IsInf(scale, 0) {
		scale = 1
	}
	var sum float64
	for _, n := range nums {
		sum += n / scale
	}
	mean := sum / float64(len(nums))
	setFloat(stats, StatMean, mean*scale)
	// Sample standard deviation, undefined for a single value.
	if len(nums) > 1 {
		var ss float64
		for _, n := range nums {
			d := n/scale - mean
			ss += d * d
		}
		setFloat(stats, StatStd, math.Sqrt(ss/float64(len(nums)-1))*scale)
	}
	setFloat(stats, StatP25, quantile(nums, 0.25))
	setFloat(stats, StatP50, quantile(nums, 0.50))
	setFloat(stats, StatP75, quantile(nums, 0.75))
	return stats
}

// setFloat stores f under key unless it is NaN or infinite.
func setFloat(stats map[string]any, key string, f float64) {
	if v := normalizeFloat(f); v != nil {
		stats[key] = v
	}
}

// quantile uses linear interpolation between closest ranks on sorted data.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func datetimeStats(values []any) map[string]any {
	var lo, hi time.Time
	found := false
	for _, v := range values {
		var ts time.Time
		switch t := v.(type) {
		case time.Time:
			ts = t
		case *time.Time:
			if t == nil {
				continue
			}
			ts = *t
		default:
			continue
		}
		if !found || ts.Before(lo) {
			lo = ts
		}
		if !found || ts.After(hi) {
			hi = ts
		}
		found = true
	}
	if !found {
		return nil
	}
	return map[string]any{
		StatMin: Normalize(lo),
		StatMax: Normalize(hi),
	}
}

func stringStats(values []any) map[string]any {
	stats := topFreq(values)
	var lo, hi string
	found := false
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if !found || s < lo {
			lo = s
		}
		if !found || s > hi {
			hi = s
		}
		found = true
	}
	if found {
		stats[StatMin] = lo
		stats[StatMax] = hi
	}
	return stats
}

// topFreq returns the most frequent value and its count. Ties go to the
// value seen first.
func topFreq(values []any) map[string]any {
	counts := make(map[string]int)
	first := make(map[string]any)
	var order []string
	for _, v := range values {
		key := uniqueKey(v)
		if _, seen := first[key]; !seen {
			first[key] = v
			order = append(order, key)
		}
		counts[key]++
	}

	best := ""
	for _, key := range order {
		if best == "" || counts[key] > counts[best] {
			best = key
		}
	}
	return map[string]any{
		StatTop:  first[best],
		StatFreq: int64(counts[best]),
	}
}
