package stream

import (
	"testing"
	"time"

	"marketpulse_backend/models"
)

func TestDropReturnsAfterClose(t *testing.T) {
	h := NewHub()
	h.Close()

	done := make(chan struct{})
	go func() {
		h.drop(&Client{send: make(chan []byte, 1)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}
}

func TestDropUnregistersRunningClient(t *testing.T) {
	h := NewHub()
	defer h.Close()

	client := &Client{send: make(chan []byte, 1), subscribed: make(map[string]bool)}
	h.register <- client

	done := make(chan struct{})
	go func() {
		h.drop(client)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drop blocked on a running hub")
	}

	// The run loop closes the client's send channel on unregistration
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("send channel delivered data instead of closing")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after unregister")
	}
}

func TestRecordTriggerAfterCloseDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Close()

	done := make(chan struct{})
	go func() {
		h.RecordTrigger(models.TriggerEvent{Symbol: "AAPL"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordTrigger blocked after hub shutdown")
	}
}
