package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient("ws://localhost:0/ws")

	c.Close()
	assert.NotPanics(t, func() { c.Close() })
}

func TestConcurrentCloseIsSafe(t *testing.T) {
	c := NewClient("ws://localhost:0/ws")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	select {
	case <-c.done:
	default:
		t.Fatal("done must be closed after Close")
	}
}
