package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tally/internal/clock"
	"github.com/roach88/tally/internal/idgen"
)

var (
	_ clock.Clock     = (*FakeClock)(nil)
	_ idgen.Generator = (*SequenceGenerator)(nil)
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))

	later := start.Add(48 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("sub")
	assert.Equal(t, "sub-0001", g.Generate())
	assert.Equal(t, "sub-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "sub-0001", g.Generate())

	assert.Equal(t, "id-0001", NewSequenceGenerator("").Generate())
}

func TestSequenceGeneratorConcurrent(t *testing.T) {
	g := NewSequenceGenerator("x")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(g.Generate(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}
