package tabular

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func mustLoadCSV(t *testing.T, data string) *Dataset {
	t.Helper()
	ds, err := LoadCSV(strings.NewReader(data), "test")
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	return ds
}

const peopleCSV = `id,name,age,status,score
1,John,35,active,1.5
2,Alice,28,pending,
3,Jordan,30,inactive,3
4,bob,41,active,abc
5,Joanna,,active,2
`

func TestEvaluate(t *testing.T) {
	ds := mustLoadCSV(t, peopleCSV)
	tests := []struct {
		name   string
		filter string
		want   []int
	}{
		{"no conditions", "", []int{0, 1, 2, 3, 4}},
		{"numeric ge", "age>=30", []int{0, 2, 3}},
		{"numeric eq on float literal", "age==30.0", []int{2}},
		{"null fails comparisons", "age<100", []int{0, 1, 2, 3}},
		{"null passes not equal", "age!=35", []int{1, 2, 3, 4}},
		{"contains case insensitive", "name~JO", []int{0, 2, 4}},
		{"contains strips quotes", `name~"jo"`, []int{0, 2, 4}},
		{"and", "age>=30;name~jo", []int{0, 2}},
		{"in text", "status in [active,pending]", []int{0, 1, 3, 4}},
		{"in bare list", "status in active", []int{0, 3, 4}},
		{"in numbers", "id in [1, 3]", []int{0, 2}},
		{"in numbers does not match text", "status in [1]", nil},
		{"text equality", "status==active", []int{0, 3, 4}},
		{"text equality strips quotes", "status=='pending'", []int{1}},
		{"text ordering", "name<K", []int{0, 1, 2, 4}},
		{"unknown column", "foo==1", nil},
		{"unknown column wins over match", "age>=0;foo==1", nil},
		{"text column numeric coercion", "score>1", []int{0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("ParseFilter: %v", err)
			}
			mask, err := Evaluate(ds, conds)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if len(mask) != ds.Len() {
				t.Fatalf("len(mask) = %d, want %d", len(mask), ds.Len())
			}
			got := mask.Indices()
			if len(got) == 0 {
				got = nil
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("filter %q matched rows %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestEvaluate_UnsupportedOperator(t *testing.T) {
	ds := mustLoadCSV(t, peopleCSV)
	_, err := Evaluate(ds, []Condition{{Column: "age", Op: "=~", Value: "1"}})
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("Evaluate error = %v, want ErrUnsupportedOperator", err)
	}
}

func TestEvaluate_TextRendering(t *testing.T) {
	ds := mustLoadCSV(t, "f,b\n1.5,true\n2,false\n")
	tests := []struct {
		filter string
		want   []int
	}{
		{"f==2.0", []int{1}},
		// Floats render with a decimal point.
		{"f~2.0", []int{1}},
		{"b==True", []int{0}},
		{"b in [1]", []int{0}},
		{"b==0", []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			conds, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("ParseFilter: %v", err)
			}
			mask, err := Evaluate(ds, conds)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := mask.Indices(); !slices.Equal(got, tt.want) {
				t.Errorf("filter %q matched rows %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}
