package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackboard(t *testing.T) {
	var b Blackboard
	assert.Nil(t, b.Get("x"))
	assert.False(t, b.Has("x"))
	assert.Empty(t, b.Keys())
	assert.NotNil(t, b.Snapshot())

	b.Set("b", true)
	b.Set("a", 1)
	assert.True(t, b.Has("a"))
	assert.Equal(t, []string{"a", "b"}, b.Keys())

	snap := b.Snapshot()
	snap["a"] = 2
	assert.Equal(t, 1, b.Get("a"), "snapshot is a copy")

	b.Clear()
	assert.Empty(t, b.Keys())
}

func TestBlackboardConcurrent(t *testing.T) {
	var (
		b  Blackboard
		wg sync.WaitGroup
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				b.Set("k", i*j)
				_ = b.Get("k")
				_ = b.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.True(t, b.Has("k"))
}
