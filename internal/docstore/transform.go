package docstore

// Sentinel is a marker value resolved by the store at write time.
type Sentinel int

const (
	// ServerTimestamp is replaced with the store's clock when written.
	ServerTimestamp Sentinel = iota + 1
	// DeleteField removes the targeted field in an Update.
	DeleteField
)

func (s Sentinel) String() string {
	switch s {
	case ServerTimestamp:
		return "ServerTimestamp"
	case DeleteField:
		return "DeleteField"
	default:
		return "Sentinel(?)"
	}
}

// Incr atomically adds By to a numeric field. A missing field counts as zero.
type Incr struct {
	By int64
}

// Union atomically adds each element not already present in an array field.
type Union struct {
	Elems []any
}

// Remove atomically removes every occurrence of each element from an array field.
type Remove struct {
	Elems []any
}

// Increment returns an atomic increment transform.
func Increment(n int64) Incr {
	return Incr{By: n}
}

// ArrayUnion returns an atomic set-union transform.
func ArrayUnion(elems ...any) Union {
	return Union{Elems: elems}
}

// ArrayRemove returns an atomic set-difference transform.
func ArrayRemove(elems ...any) Remove {
	return Remove{Elems: elems}
}

// PreconditionOp is the kind of check a Precondition performs.
type PreconditionOp int

const (
	// MustContain holds when the array at Path contains Value.
	MustContain PreconditionOp = iota + 1
	// MustNotContain holds when the array at Path is missing or lacks Value.
	MustNotContain
)

// Precondition is evaluated atomically with an Update.
type Precondition struct {
	Path  string
	Op    PreconditionOp
	Value any
}

// Contains requires the array at path to contain v.
func Contains(path string, v any) Precondition {
	return Precondition{Path: path, Op: MustContain, Value: v}
}

// NotContains requires the array at path not to contain v.
func NotContains(path string, v any) Precondition {
	return Precondition{Path: path, Op: MustNotContain, Value: v}
}
