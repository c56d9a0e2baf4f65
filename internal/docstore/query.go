package docstore

import (
	"fmt"
	"strings"
)

// Op is a filter comparison operator. The values match the Firestore spelling.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is a single field condition.
type Filter struct {
	Path  string
	Op    Op
	Value any
}

// Order sorts results by one field. Documents lacking the field are excluded.
type Order struct {
	Path      string
	Direction Direction
}

// Query selects documents from one collection. Builders return copies, so a
// base query can be shared.
type Query struct {
	Collection string
	Filters    []Filter
	Order      *Order
	Max        int
}

// NewQuery starts a query over collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where adds a filter.
func (q Query) Where(path string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Path: path, Op: op, Value: value})
	return q
}

// OrderBy sets the sort field.
func (q Query) OrderBy(path string, dir Direction) Query {
	q.Order = &Order{Path: path, Direction: dir}
	return q
}

// Limit caps the number of results. Zero means unlimited.
func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

// Key returns a stable identity for the query, used to share live feeds.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|%s%s%v", f.Path, f.Op, f.Value)
	}
	if q.Order != nil {
		dir := "asc"
		if q.Order.Direction == Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order:%s:%s", q.Order.Path, dir)
	}
	if q.Max > 0 {
		fmt.Fprintf(&b, "|limit:%d", q.Max)
	}
	return b.String()
}

// Validate checks the query shape.
func (q Query) Validate() error {
	if err := ValidateCollection(q.Collection); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := ValidateField(f.Path); err != nil {
			return err
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	if q.Order != nil {
		if err := ValidateField(q.Order.Path); err != nil {
			return err
		}
	}
	if q.Max < 0 {
		return fmt.Errorf("negative limit %d", q.Max)
	}
	return nil
}
