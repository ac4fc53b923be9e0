// Parses the compact filter expression language.

package tabular

import (
	"fmt"
	"strings"
)

// Op is a filter operator.
type Op string

// Filter operators.
const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpGe       Op = ">="
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpIn       Op = "in"
	OpContains Op = "~"
)

// Condition is one parsed filter clause. Conditions are ANDed.
type Condition struct {
	Column string
	Op     Op
	Value  string
}

func (c Condition) String() string {
	if c.Op == OpIn {
		return c.Column + " in " + c.Value
	}
	return c.Column + string(c.Op) + c.Value
}

// operatorTokens are tried in this order at every position of a clause.
var operatorTokens = []struct {
	token string
	op    Op
}{
	{"==", OpEq},
	{"!=", OpNe},
	{">=", OpGe},
	{"<=", OpLe},
	{">", OpGt},
	{"<", OpLt},
	{" in ", OpIn},
	{"~", OpContains},
}

// ParseFilter splits expr on ';' and parses each clause as
// <column><operator><value>.
//
// The leftmost operator occurrence splits a clause. At a given position the
// operators are tried in the order ==, !=, >=, <=, >, <, " in ", ~ so that
// two-character operators win over their one-character prefixes. "in" is
// case-insensitive and must be surrounded by whitespace. Empty clauses are
// skipped. A clause with no operator fails with ErrInvalidFilterSyntax.
func ParseFilter(expr string) ([]Condition, error) {
	var out []Condition
	for raw := range strings.SplitSeq(expr, ";") {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			continue
		}
		c, ok := splitClause(clause)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilterSyntax, clause)
		}
		out = append(out, c)
	}
	return out, nil
}

func splitClause(clause string) (Condition, bool) {
	for i := 0; i < len(clause); i++ {
		for _, ot := range operatorTokens {
			if ot.op == OpIn {
				if j, end, ok := matchIn(clause, i); ok {
					return Condition{
						Column: strings.TrimSpace(clause[:j]),
						Op:     OpIn,
						Value:  strings.TrimSpace(clause[end:]),
					}, true
				}
				continue
			}
			if strings.HasPrefix(clause[i:], ot.token) {
				return Condition{
					Column: strings.TrimSpace(clause[:i]),
					Op:     ot.op,
					Value:  strings.TrimSpace(clause[i+len(ot.token):]),
				}, true
			}
		}
	}
	return Condition{}, false
}

// matchIn reports whether " in " (case-insensitive) starts at i.
func matchIn(s string, i int) (start, end int, ok bool) {
	if i+4 > len(s) || s[i] != ' ' || s[i+3] != ' ' || !strings.EqualFold(s[i+1:i+3], "in") {
		return 0, 0, false
	}
	return i, i + 4, true
}
