// Provides multi-key sorting of dataset rows.

package tabular

import (
	"slices"
	"strings"
)

// SortKey is one column of a sort specification.
type SortKey struct {
	Column string
	Desc   bool
}

// ParseSort parses "col[:asc|:desc],..." into sort keys.
//
// Any direction other than "desc" (case-insensitive) sorts ascending. Keys
// whose column is rejected by known are dropped silently; a nil known keeps
// every key.
func ParseSort(spec string, known func(string) bool) []SortKey {
	var keys []SortKey
	for part := range strings.SplitSeq(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		col, dir, _ := strings.Cut(part, ":")
		col = strings.TrimSpace(col)
		if known != nil && !known(col) {
			continue
		}
		keys = append(keys, SortKey{Column: col, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")})
	}
	return keys
}

// sortRows stably orders idx, a slice of row positions in ds, by keys.
// Nulls sort last in both directions.
func sortRows(ds *Dataset, idx []int, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	cols := make([]int, len(keys))
	for i, k := range keys {
		cols[i] = ds.ColumnIndex(k.Column)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for i, k := range keys {
			va := ds.Rows[a][cols[i]]
			vb := ds.Rows[b][cols[i]]
			switch an, bn := va.IsNull(), vb.IsNull(); {
			case an && bn:
				continue
			case an:
				return 1
			case bn:
				return -1
			}
			if c := compareValues(va, vb); c != 0 {
				if k.Desc {
					return -c
				}
				return c
			}
		}
		return 0
	})
}
