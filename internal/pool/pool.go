package pool

// Resettable is implemented by values that can be cleared for reuse.
type Resettable interface {
	Reset()
}

// Poolable values can be reset and compared against their zero value.
type Poolable interface {
	Resettable
	comparable
}

// Pool is a bounded free list of reusable values, used for response buffers.
type Pool[T Poolable] struct {
	items   chan T
	newItem func() T
}

// New creates a pool holding at most capacity idle values. newItem, when not
// nil, builds a value whenever the pool is empty.
func New[T Poolable](capacity int, newItem func() T) *Pool[T] {
	return &Pool[T]{
		items:   make(chan T, capacity),
		newItem: newItem,
	}
}

// Get returns an idle value, a new one, or the zero value when the pool has
// no constructor.
func (p *Pool[T]) Get() T {
	select {
	case item := <-p.items:
		return item
	default:
	}

	if p.newItem != nil {
		return p.newItem()
	}

	var zero T
	return zero
}

// Put resets item and keeps it for reuse. Zero values and values beyond
// capacity are dropped.
func (p *Pool[T]) Put(item T) {
	var zero T
	if item == zero {
		return
	}

	item.Reset()

	select {
	case p.items <- item:
	default:
	}
}

// Len reports the number of idle values.
func (p *Pool[T]) Len() int {
	return len(p.items)
}
