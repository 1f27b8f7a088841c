package history

// DefaultCapacity is used when a buffer is constructed with a
// non-positive capacity
const DefaultCapacity = 60

// Buffer is a fixed-capacity ring of samples for one metric. Push
// evicts the oldest value once full. Not synchronized: a buffer is
// owned by the consumer loop and never shared with the sampling worker.
type Buffer[T any] struct {
	data []T
	head int // next write position
	size int
}

// NewBuffer creates a buffer with the given capacity. The capacity is
// fixed for the lifetime of the buffer.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Buffer[T]{
		data: make([]T, capacity),
	}
}

// Push appends a value, evicting the oldest when the buffer is full
func (b *Buffer[T]) Push(value T) {
	b.data[b.head] = value
	b.head = (b.head + 1) % len(b.data)
	if b.size < len(b.data) {
		b.size++
	}
}

// Len returns the number of buffered values
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// IsEmpty reports whether the buffer holds no values
func (b *Buffer[T]) IsEmpty() bool {
	return b.size == 0
}

// Clear drops all buffered values. Capacity is unchanged.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.head = 0
	b.size = 0
}

// Latest returns the most recently pushed value
func (b *Buffer[T]) Latest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}

	idx := (b.head - 1 + len(b.data)) % len(b.data)

	return b.data[idx], true
}

// Values returns the buffered values oldest first
func (b *Buffer[T]) Values() []T {
	if b.size == 0 {
		return nil
	}

	values := make([]T, b.size)
	start := (b.head - b.size + len(b.data)) % len(b.data)
	for i := 0; i < b.size; i++ {
		values[i] = b.data[(start+i)%len(b.data)]
	}

	return values
}

// Do calls fn on each buffered value oldest first, stopping early when
// fn returns false
func (b *Buffer[T]) Do(fn func(T) bool) {
	start := (b.head - b.size + len(b.data)) % len(b.data)
	for i := 0; i < b.size; i++ {
		if !fn(b.data[(start+i)%len(b.data)]) {
			return
		}
	}
}
