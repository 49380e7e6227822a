package epoch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	var g Guard
	assert.Equal(t, Epoch(0), g.Current())

	e1 := g.Advance()
	e2 := g.Advance()
	assert.Equal(t, Epoch(1), e1)
	assert.Equal(t, Epoch(2), e2)
	assert.True(t, g.IsCurrent(e2))
	assert.True(t, g.Stale(e1))
}

func TestAdvanceConcurrent(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Advance()
		}()
	}
	wg.Wait()
	assert.Equal(t, Epoch(64), g.Current())
}
