package sentiment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	cache := NewCache(10)

	_, ok := cache.Get("hello there", "alice")
	assert.False(t, ok)

	scores := NewScores()
	scores["Happy"] = 0.9
	cache.Set("hello there", "alice", scores)

	got, ok := cache.Get("hello there", "alice")
	assert.True(t, ok)
	assert.Equal(t, 0.9, got["Happy"])

	// Same text from a different speaker is a distinct entry.
	_, ok = cache.Get("hello there", "bob")
	assert.False(t, ok)
}

func TestCacheFIFOEviction(t *testing.T) {
	cache := NewCache(3)

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("utterance %d", i), "alice", NewScores())
	}
	assert.Equal(t, 3, cache.Size())

	// Reading the oldest entry does not promote it.
	_, ok := cache.Get("utterance 0", "alice")
	assert.True(t, ok)

	cache.Set("utterance 3", "alice", NewScores())

	_, ok = cache.Get("utterance 0", "alice")
	assert.False(t, ok, "oldest entry should be evicted despite recent read")
	_, ok = cache.Get("utterance 1", "alice")
	assert.True(t, ok)
	_, ok = cache.Get("utterance 3", "alice")
	assert.True(t, ok)
}

func TestCacheUpdateKeepsPosition(t *testing.T) {
	cache := NewCache(2)

	cache.Set("first", "alice", NewScores())
	cache.Set("second", "alice", NewScores())

	updated := NewScores()
	updated["Happy"] = 1.0
	cache.Set("first", "alice", updated)
	assert.Equal(t, 2, cache.Size())

	// "first" is still the oldest entry, so the next insert evicts it.
	cache.Set("third", "alice", NewScores())
	_, ok := cache.Get("first", "alice")
	assert.False(t, ok)
	_, ok = cache.Get("second", "alice")
	assert.True(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(5)
	cache.Set("some text", "alice", NewScores())
	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	_, ok := cache.Get("some text", "alice")
	assert.False(t, ok)
}
