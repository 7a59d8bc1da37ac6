package requeststore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextedit/tracker/internal/request"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-5)
	assert.Error(t, err)
}

func TestPutAndGet(t *testing.T) {
	store, err := New(DefaultCapacity)
	require.NoError(t, err)

	rec := request.New("req-1", time.Now())
	store.Put(rec)

	got, ok := store.Get("req-1")
	require.True(t, ok)
	assert.Same(t, rec, got)

	_, ok = store.Get("req-unknown")
	assert.False(t, ok)
}

func TestEvictionBeyondCapacity(t *testing.T) {
	store, err := New(DefaultCapacity)
	require.NoError(t, err)

	// Insert past capacity; only the most recent DefaultCapacity stay.
	for i := 0; i < DefaultCapacity+5; i++ {
		store.Put(request.New(fmt.Sprintf("req-%d", i), time.Now()))
	}

	assert.Equal(t, DefaultCapacity, store.Len())
	for i := 0; i < 5; i++ {
		assert.False(t, store.Contains(fmt.Sprintf("req-%d", i)), "req-%d should be evicted", i)
	}
	for i := 5; i < DefaultCapacity+5; i++ {
		assert.True(t, store.Contains(fmt.Sprintf("req-%d", i)), "req-%d should be resident", i)
	}
}

func TestReadRefreshesRecency(t *testing.T) {
	store, err := New(3)
	require.NoError(t, err)

	store.Put(request.New("a", time.Now()))
	store.Put(request.New("b", time.Now()))
	store.Put(request.New("c", time.Now()))

	// Touch "a" so "b" becomes the coldest entry.
	_, ok := store.Get("a")
	require.True(t, ok)

	store.Put(request.New("d", time.Now()))

	assert.True(t, store.Contains("a"))
	assert.False(t, store.Contains("b"))
	assert.True(t, store.Contains("c"))
	assert.True(t, store.Contains("d"))
}

func TestOverwriteDoesNotGrow(t *testing.T) {
	store, err := New(2)
	require.NoError(t, err)

	store.Put(request.New("a", time.Now()))
	updated := request.New("a", time.Now())
	updated.FilePath = "main.go"
	store.Put(updated)

	assert.Equal(t, 1, store.Len())
	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "main.go", got.FilePath)
}

func TestKeysOrderedByRecency(t *testing.T) {
	store, err := New(3)
	require.NoError(t, err)

	store.Put(request.New("a", time.Now()))
	store.Put(request.New("b", time.Now()))
	store.Put(request.New("c", time.Now()))
	store.Get("a")

	assert.Equal(t, []string{"b", "c", "a"}, store.Keys())
}
