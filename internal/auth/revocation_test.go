package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationSet_AddContains(t *testing.T) {
	s := NewRevocationSet()
	exp := time.Now().Add(time.Hour)

	assert.False(t, s.Contains("a"))
	assert.True(t, s.Add("a", exp))
	assert.False(t, s.Add("a", exp))
	assert.True(t, s.Contains("a"))
	assert.Equal(t, 1, s.Len())
}

func TestRevocationSet_Prune(t *testing.T) {
	clock := newFakeClock()
	s := NewRevocationSet().WithClock(clock.Now)

	s.Add("short", clock.now.Add(time.Minute))
	s.Add("long", clock.now.Add(time.Hour))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Prune())
	assert.False(t, s.Contains("short"))
	assert.True(t, s.Contains("long"))
}

func TestRevocationSet_PrunesWhenOverCapacity(t *testing.T) {
	clock := newFakeClock()
	s := NewRevocationSet().WithClock(clock.Now)
	s.maxSize = 3

	for i := 0; i < 3; i++ {
		s.Add(fmt.Sprintf("old-%d", i), clock.now.Add(time.Second))
	}
	clock.Advance(time.Minute)

	s.Add("fresh", clock.now.Add(time.Hour))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("fresh"))
}

func TestRevocationSet_ConcurrentAdd(t *testing.T) {
	s := NewRevocationSet()
	exp := time.Now().Add(time.Hour)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same", exp) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}
