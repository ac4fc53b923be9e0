// Evaluates parsed filter conditions against a dataset.

package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// Mask selects rows of a dataset; Mask[i] is true when row i matches.
type Mask []bool

// Indices returns the positions of the selected rows in order.
func (m Mask) Indices() []int {
	out := make([]int, 0, len(m))
	for i, ok := range m {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Evaluate ANDs conds over every row of ds.
//
// With no conditions every row matches. A condition on a column that does
// not exist matches nothing, which empties the whole result.
func Evaluate(ds *Dataset, conds []Condition) (Mask, error) {
	mask := make(Mask, len(ds.Rows))
	for i := range mask {
		mask[i] = true
	}
	remaining := len(mask)
	for _, c := range conds {
		if remaining == 0 {
			break
		}
		col := ds.ColumnIndex(c.Column)
		if col < 0 {
			clear(mask)
			return mask, nil
		}
		pred, err := predicate(c)
		if err != nil {
			return nil, err
		}
		for i, row := range ds.Rows {
			if mask[i] && !pred(row[col]) {
				mask[i] = false
				remaining--
			}
		}
	}
	return mask, nil
}

// Predicate compiles c into a cell test. The column is not consulted; the
// caller picks the cell.
func (c Condition) Predicate() (func(Value) bool, error) {
	return predicate(c)
}

// predicate compiles a condition into a cell test.
func predicate(c Condition) (func(Value) bool, error) {
	switch c.Op {
	case OpIn:
		return inPredicate(c.Value), nil
	case OpContains:
		needle := strings.ToLower(strings.Trim(c.Value, `"'`))
		return func(v Value) bool {
			if v.IsNull() {
				return false
			}
			return strings.Contains(strings.ToLower(v.String()), needle)
		}, nil
	case OpEq, OpNe, OpGe, OpLe, OpGt, OpLt:
		if rhs, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return func(v Value) bool {
				lhs, ok := v.Number()
				if !ok {
					return c.Op == OpNe
				}
				return compareFloat(c.Op, lhs, rhs)
			}, nil
		}
		lit := strings.Trim(c.Value, `"'`)
		return func(v Value) bool {
			return compareResult(c.Op, strings.Compare(v.String(), lit))
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, c.Op)
	}
}

// inPredicate parses "[a, b, 3]" or "a,b,3". Elements that parse as numbers
// match numeric cells; the others match text cells exactly.
func inPredicate(list string) func(Value) bool {
	var nums []float64
	texts := map[string]bool{}
	for e := range strings.SplitSeq(strings.Trim(list, "[] "), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if f, err := strconv.ParseFloat(e, 64); err == nil {
			nums = append(nums, f)
		} else {
			texts[e] = true
		}
	}
	return func(v Value) bool {
		switch v.Kind() {
		case KindInt, KindFloat, KindBool:
			n, _ := v.Number()
			for _, x := range nums {
				if n == x {
					return true
				}
			}
			return false
		case KindText:
			return texts[v.Str()]
		default:
			return false
		}
	}
}

// compareFloat applies op. NaN on either side fails everything but !=.
func compareFloat(op Op, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGe:
		return a >= b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	}
	return false
}

func compareResult(op Op, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGe:
		return c >= 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpLt:
		return c < 0
	}
	return false
}
