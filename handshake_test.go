package typelens_test

import (
	"go/token"
	"testing"
	"time"

	"typelens"
)

func TestOnReadyBlocksUntilClose(t *testing.T) {
	delivered := make(chan *typelens.Environment, 1)
	hs := typelens.NewHandshake(func(env *typelens.Environment) {
		delivered <- env
	})

	env := typelens.NewEnvironment(token.NewFileSet())
	returned := make(chan struct{})
	go func() {
		hs.OnReady(env)
		close(returned)
	}()

	select {
	case got := <-delivered:
		if got != env {
			t.Fatalf("delivered %v, want %v", got, env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnReady did not publish")
	}

	// Publication happened; the caller must still be parked.
	select {
	case <-returned:
		t.Fatal("OnReady returned before Close")
	case <-time.After(50 * time.Millisecond):
	}

	hs.Close()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("OnReady still parked after Close")
	}
}

// TestCloseBeforeOnReady: a pre-emptive Close makes the eventual
// OnReady return immediately, so an aborted bootstrap never leaks a
// parked goroutine.
func TestCloseBeforeOnReady(t *testing.T) {
	hs := typelens.NewHandshake(nil)
	hs.Close()

	returned := make(chan struct{})
	go func() {
		hs.OnReady(nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("OnReady blocked despite prior Close")
	}
}

func TestCloseIdempotent(t *testing.T) {
	hs := typelens.NewHandshake(nil)
	if hs.Closed() {
		t.Fatal("fresh handshake must be open")
	}
	hs.Close()
	hs.Close()
	hs.Close()
	if !hs.Closed() {
		t.Fatal("handshake must stay closed")
	}
}
