package ingest

import (
	"io"
	"os/exec"
	"testing"
	"time"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newIdleProc(queueCap, lowWater int, events ProcEvents) *ffmpegProc {
	p := &ffmpegProc{
		roomID:   "room-1",
		cmd:      exec.Command("true"),
		stdin:    nopWriteCloser{io.Discard},
		events:   events,
		queue:    make(chan []byte, queueCap),
		lowWater: lowWater,
		done:     make(chan struct{}),
	}
	p.state.Store(stateRunning)
	return p
}

func TestKillReleasesWriteLoop(t *testing.T) {
	p := newIdleProc(4, 1, ProcEvents{})

	exited := make(chan struct{})
	go func() {
		p.writeLoop()
		close(exited)
	}()

	p.queue <- []byte("fragment")
	p.Kill()
	p.Kill()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("write loop still running after Kill")
	}
}

func TestExitReleasesWriteLoop(t *testing.T) {
	p := newIdleProc(4, 1, ProcEvents{})

	exited := make(chan struct{})
	go func() {
		p.writeLoop()
		close(exited)
	}()

	// A crash takes the same release path as Kill, through waitExit.
	p.stopWriteLoop()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("write loop still running after exit signal")
	}
}

func TestBusyWriteEmitsReadyWhenQueueAlreadyDrained(t *testing.T) {
	ready := make(chan struct{}, 1)
	p := newIdleProc(1, 1, ProcEvents{
		OnReady: func() { ready <- struct{}{} },
	})

	if res, err := p.Write([]byte("a")); err != nil || res != Ready {
		t.Fatalf("first Write = (%v, %v), want (Ready, nil)", res, err)
	}

	// The queue is full but already at low water, the state a concurrent
	// drain leaves behind when it races the suspended flag. The Busy
	// result must still come with a readiness notification.
	if res, err := p.Write([]byte("b")); err != nil || res != Busy {
		t.Fatalf("second Write = (%v, %v), want (Busy, nil)", res, err)
	}

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("readiness notification never emitted")
	}
	if p.suspended.Load() {
		t.Fatal("suspended flag still set after recovery")
	}
}

func TestWriteAfterFailureReturnsError(t *testing.T) {
	p := newIdleProc(4, 1, ProcEvents{})
	p.state.Store(stateFailed)

	if _, err := p.Write([]byte("a")); err == nil {
		t.Fatal("Write on failed process returned nil error")
	}
}
