package ingest

import "testing"

func frag(seq uint64) Fragment {
	return Fragment{Seq: seq, Payload: []byte{byte(seq)}}
}

func TestFragmentBufferFIFOOrder(t *testing.T) {
	b := NewFragmentBuffer(4)
	for seq := uint64(1); seq <= 3; seq++ {
		if dropped := b.Push(frag(seq)); dropped {
			t.Fatalf("Push(%d) reported a drop below capacity", seq)
		}
	}
	if got := b.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	for seq := uint64(1); seq <= 3; seq++ {
		f, ok := b.Pop()
		if !ok {
			t.Fatalf("Pop() empty at seq %d", seq)
		}
		if f.Seq != seq {
			t.Fatalf("Pop() seq = %d, want %d", f.Seq, seq)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatal("Pop() on empty buffer returned a fragment")
	}
}

func TestFragmentBufferEvictsOldest(t *testing.T) {
	b := NewFragmentBuffer(3)
	for seq := uint64(1); seq <= 3; seq++ {
		b.Push(frag(seq))
	}

	if dropped := b.Push(frag(4)); !dropped {
		t.Fatal("Push past capacity did not report a drop")
	}
	if dropped := b.Push(frag(5)); !dropped {
		t.Fatal("second Push past capacity did not report a drop")
	}

	// 1 and 2 were evicted; 3, 4, 5 survive in order.
	want := []uint64{3, 4, 5}
	for _, seq := range want {
		f, ok := b.Pop()
		if !ok {
			t.Fatalf("Pop() empty, want seq %d", seq)
		}
		if f.Seq != seq {
			t.Fatalf("Pop() seq = %d, want %d", f.Seq, seq)
		}
	}
}

func TestFragmentBufferPeekDoesNotConsume(t *testing.T) {
	b := NewFragmentBuffer(2)
	b.Push(frag(7))

	for i := 0; i < 3; i++ {
		f, ok := b.Peek()
		if !ok || f.Seq != 7 {
			t.Fatalf("Peek() = (%v, %v), want seq 7", f.Seq, ok)
		}
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("Len() after Peek = %d, want 1", got)
	}
}

func TestFragmentBufferZeroCapacityClamped(t *testing.T) {
	b := NewFragmentBuffer(0)
	if got := b.Cap(); got != 1 {
		t.Fatalf("Cap() = %d, want 1", got)
	}
	b.Push(frag(1))
	if dropped := b.Push(frag(2)); !dropped {
		t.Fatal("Push into single-slot buffer did not evict")
	}
	f, _ := b.Pop()
	if f.Seq != 2 {
		t.Fatalf("Pop() seq = %d, want 2", f.Seq)
	}
}
