// Registers the SQL function that evaluates filter conditions inside SQLite.

package storage

import (
	"database/sql/driver"
	"fmt"

	"github.com/maruel/tabserve/internal/tabular"
	"modernc.org/sqlite"
)

// matchFuncName is called as tab_match(cell, dtype, op, literal) and returns 1
// when the cell satisfies the condition. It shares the in-memory evaluator so
// that stored tables and files on disk filter identically.
const matchFuncName = "tab_match"

func registerFunctions() error {
	return sqlite.RegisterDeterministicScalarFunction(matchFuncName, 4, matchFunc)
}

func matchFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	dtype, _ := args[1].(string)
	op, _ := args[2].(string)
	lit, _ := args[3].(string)
	pred, err := tabular.Condition{Op: tabular.Op(op), Value: lit}.Predicate()
	if err != nil {
		return nil, err
	}
	if pred(fromSQL(args[0], tabular.ColumnType(dtype))) {
		return int64(1), nil
	}
	return int64(0), nil
}

// fromSQL converts a stored cell back into a tabular value of column type t.
func fromSQL(v any, t tabular.ColumnType) tabular.Value {
	switch x := v.(type) {
	case nil:
		return tabular.Null()
	case int64:
		switch t {
		case tabular.TypeBoolean:
			return tabular.Bool(x != 0)
		case tabular.TypeFloat:
			return tabular.Float(float64(x))
		case tabular.TypeText:
			return tabular.Text(fmt.Sprint(x))
		}
		return tabular.Int(x)
	case float64:
		if t == tabular.TypeInteger && x == float64(int64(x)) {
			return tabular.Int(int64(x))
		}
		return tabular.Float(x)
	case string:
		return tabular.Text(x)
	case []byte:
		return tabular.Text(string(x))
	case bool:
		return tabular.Bool(x)
	default:
		return tabular.Text(fmt.Sprint(x))
	}
}

// toSQL converts a cell for binding into a column of type t. Cells of text
// columns are stored in their rendered form so that the column stays
// homogeneous.
func toSQL(v tabular.Value, t tabular.ColumnType) any {
	if v.IsNull() {
		return nil
	}
	if t == tabular.TypeText {
		if v.Kind() == tabular.KindText {
			return v.Str()
		}
		return v.String()
	}
	if v.Kind() == tabular.KindBool {
		if v.Truth() {
			return int64(1)
		}
		return int64(0)
	}
	return v.Any()
}
