package value

import "github.com/dartleaf/miniscript/internal/errs"

// List is a mutable, insertion-ordered sequence of values, shared by
// reference between the Values that hold it.
type List struct {
	id     uint64
	Values []Value
}

func NewList(values ...Value) *List {
	return &List{id: newRefID(), Values: values}
}

func NewListCap(capacity int) *List {
	return &List{id: newRefID(), Values: make([]Value, 0, capacity)}
}

func (l *List) Len() int {
	return len(l.Values)
}

// NormalizeIndex applies negative-index wrap and bounds-checks the result.
func NormalizeIndex(index float64, length int) (int, error) {
	i := int(index)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, errs.NewIndexError(index)
	}
	return i, nil
}

// Get returns the element at index with negative wrap.
func (l *List) Get(index float64) (Value, error) {
	i, err := NormalizeIndex(index, len(l.Values))
	if err != nil {
		return Value{}, err
	}
	return l.Values[i], nil
}

// Set stores the element at index with negative wrap.
func (l *List) Set(index float64, v Value) error {
	i, err := NormalizeIndex(index, len(l.Values))
	if err != nil {
		return err
	}
	l.Values[i] = v
	return nil
}

// Push appends a value, enforcing the size cap.
func (l *List) Push(v Value) error {
	if len(l.Values) >= MaxSize {
		return errs.NewLimitExceeded("list too large")
	}
	l.Values = append(l.Values, v)
	return nil
}

// Insert inserts v before index (which may equal the length to append).
func (l *List) Insert(index float64, v Value) error {
	i := int(index)
	if i < 0 {
		i += len(l.Values) + 1
	}
	if i < 0 || i > len(l.Values) {
		return errs.NewIndexError(index)
	}
	if len(l.Values) >= MaxSize {
		return errs.NewLimitExceeded("list too large")
	}
	l.Values = append(l.Values, Value{})
	copy(l.Values[i+1:], l.Values[i:])
	l.Values[i] = v
	return nil
}

// RemoveAt removes the element at index with negative wrap.
func (l *List) RemoveAt(index float64) error {
	i, err := NormalizeIndex(index, len(l.Values))
	if err != nil {
		return err
	}
	l.Values = append(l.Values[:i], l.Values[i+1:]...)
	return nil
}
