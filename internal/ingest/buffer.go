package ingest

// Fragment is one chunk of raw media bytes pushed by a publisher, fed to the
// transcoder in arrival order.
type Fragment struct {
	Seq     uint64
	Payload []byte
}

// FragmentBuffer is a fixed-capacity FIFO of fragments. On overflow the
// oldest entry is evicted; losing tail data under sustained overload is a
// deliberate bounded-memory tradeoff, not a correctness bug.
type FragmentBuffer struct {
	entries []Fragment
	head    int
	count   int
}

// NewFragmentBuffer creates a buffer holding at most capacity fragments.
func NewFragmentBuffer(capacity int) *FragmentBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &FragmentBuffer{entries: make([]Fragment, capacity)}
}

// Push appends a fragment. If the buffer is full the oldest fragment is
// evicted first; the return value reports whether an eviction happened.
func (b *FragmentBuffer) Push(f Fragment) (dropped bool) {
	if b.count == len(b.entries) {
		b.entries[b.head] = Fragment{}
		b.head = (b.head + 1) % len(b.entries)
		b.count--
		dropped = true
	}
	tail := (b.head + b.count) % len(b.entries)
	b.entries[tail] = f
	b.count++
	return dropped
}

// Peek returns the oldest fragment without removing it.
func (b *FragmentBuffer) Peek() (Fragment, bool) {
	if b.count == 0 {
		return Fragment{}, false
	}
	return b.entries[b.head], true
}

// Pop removes and returns the oldest fragment.
func (b *FragmentBuffer) Pop() (Fragment, bool) {
	if b.count == 0 {
		return Fragment{}, false
	}
	f := b.entries[b.head]
	b.entries[b.head] = Fragment{}
	b.head = (b.head + 1) % len(b.entries)
	b.count--
	return f, true
}

// Len returns the number of buffered fragments.
func (b *FragmentBuffer) Len() int {
	return b.count
}

// Cap returns the configured capacity.
func (b *FragmentBuffer) Cap() int {
	return len(b.entries)
}
