package main

import (
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"
)

func TestWatchContextCancelsOnSignal(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		go func() {
			ch <- syscall.SIGTERM
		}()
	}

	ctx, cancel := watchContext()
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected context to be cancelled by signal")
	}
}

func TestWatchContextCancelFunc(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(chan<- os.Signal, ...os.Signal) {}

	ctx, cancel := watchContext()
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected manual cancellation to close the context")
	}
}
