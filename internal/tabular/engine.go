// Runs filtered, sorted and paginated queries over cached datasets.

package tabular

// DefaultMaxPageSize bounds Params.Limit when the engine is built with 0.
const DefaultMaxPageSize = 1000

// Params are the optional query inputs.
type Params struct {
	Limit  int
	Offset int
	Sort   string
	Filter string
}

// Page is one slice of a query result.
type Page struct {
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Items  []Record `json:"items"`
}

// Field is one column in a Schema.
type Field struct {
	Name  string     `json:"name"`
	DType ColumnType `json:"dtype"`
}

// Schema describes a dataset's columns.
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Engine answers queries against files through a Cache. It is safe for
// concurrent use.
type Engine struct {
	cache       *Cache
	maxPageSize int
}

// NewEngine returns an engine reading through cache.
func NewEngine(cache *Cache, maxPageSize int) *Engine {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &Engine{cache: cache, maxPageSize: maxPageSize}
}

// MaxPageSize returns the upper bound applied to Params.Limit.
func (e *Engine) MaxPageSize() int { return e.maxPageSize }

// Cache returns the engine's dataset cache.
func (e *Engine) Cache() *Cache { return e.cache }

// Query loads the dataset at path, keeps the rows matching p.Filter, orders
// them by p.Sort and returns the requested window.
//
// Total counts the filtered rows before pagination. The limit is clamped to
// [0, MaxPageSize] and the offset to >= 0; a window past the end is empty.
func (e *Engine) Query(path string, p Params) (*Page, error) {
	ds, idx, err := e.filtered(path, p.Filter)
	if err != nil {
		return nil, err
	}
	sortRows(ds, idx, ParseSort(p.Sort, func(c string) bool { return ds.ColumnIndex(c) >= 0 }))
	limit := min(max(p.Limit, 0), e.maxPageSize)
	offset := max(p.Offset, 0)
	page := &Page{Total: len(idx), Limit: limit, Offset: offset, Items: []Record{}}
	if offset < len(idx) {
		for _, i := range idx[offset:min(offset+limit, len(idx))] {
			page.Items = append(page.Items, ds.Record(i))
		}
	}
	return page, nil
}

// Count returns the number of rows of the dataset at path matching filter.
func (e *Engine) Count(path, filter string) (int, error) {
	_, idx, err := e.filtered(path, filter)
	if err != nil {
		return 0, err
	}
	return len(idx), nil
}

// Schema reports the name and type of each column of the dataset at path.
func (e *Engine) Schema(path string) (*Schema, error) {
	ds, err := e.cache.Load(path)
	if err != nil {
		return nil, err
	}
	s := &Schema{Name: ds.Name, Fields: make([]Field, len(ds.Columns))}
	for i, c := range ds.Columns {
		s.Fields[i] = Field{Name: c.Name, DType: c.Type}
	}
	return s, nil
}

// Rows returns the row count of the dataset at path.
func (e *Engine) Rows(path string) (int, error) {
	ds, err := e.cache.Load(path)
	if err != nil {
		return 0, err
	}
	return ds.Len(), nil
}

// filtered returns the dataset and the positions of its matching rows. The
// position slice is freshly allocated and owned by the caller.
func (e *Engine) filtered(path, filter string) (*Dataset, []int, error) {
	ds, err := e.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}
	conds, err := ParseFilter(filter)
	if err != nil {
		return nil, nil, err
	}
	mask, err := Evaluate(ds, conds)
	if err != nil {
		return nil, nil, err
	}
	return ds, mask.Indices(), nil
}
