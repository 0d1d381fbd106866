package snowflake

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDGenerator(t *testing.T) {
	gen, err := NewIDGenerator(1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), gen.nodeID)

	_, err = NewIDGenerator(-1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewIDGenerator(nodeMask + 1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewIDGenerator(nodeMask)
	assert.NoError(t, err)
}

func TestNextID(t *testing.T) {
	t.Run("monotonic and parseable", func(t *testing.T) {
		gen, err := NewIDGenerator(7)
		require.NoError(t, err)

		before := time.Now().UnixMilli()
		prev := int64(0)
		for i := 0; i < 1000; i++ {
			id := gen.NextID()
			assert.Greater(t, id, prev)
			prev = id
		}

		ts, node, _ := ParseID(prev)
		assert.Equal(t, int64(7), node)
		assert.GreaterOrEqual(t, ts, before)
		assert.Equal(t, ts, GetTimestamp(prev))
	})

	t.Run("step overflow waits for next millisecond", func(t *testing.T) {
		gen, err := NewIDGenerator(1)
		require.NoError(t, err)

		clock := int64(Epoch + 1000)
		calls := 0
		gen.now = func() int64 {
			calls++
			// advance only after the sequence has been exhausted
			if calls > stepMask+2 {
				return clock + 1
			}
			return clock
		}

		seen := make(map[int64]bool)
		for i := 0; i < stepMask+2; i++ {
			id := gen.NextID()
			require.False(t, seen[id])
			seen[id] = true
		}
		ts, _, step := ParseID(gen.NextID())
		assert.Equal(t, clock+1, ts)
		assert.Positive(t, step)
	})

	t.Run("clock moving backwards", func(t *testing.T) {
		gen, err := NewIDGenerator(1)
		require.NoError(t, err)

		clock := int64(Epoch + 5000)
		gen.now = func() int64 { return clock }
		first := gen.NextID()

		clock -= 1000
		second := gen.NextID()
		assert.Greater(t, second, first)
	})

	t.Run("concurrent unique", func(t *testing.T) {
		gen, err := NewIDGenerator(3)
		require.NoError(t, err)

		var (
			mu  sync.Mutex
			wg  sync.WaitGroup
			ids = make(map[int64]bool)
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					id := gen.NextID()
					mu.Lock()
					ids[id] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, ids, 4000)
	})
}

func TestNext(t *testing.T) {
	gen, err := NewIDGenerator(1)
	require.NoError(t, err)

	id := gen.Next("ord_")
	require.True(t, strings.HasPrefix(id, "ord_"))
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "ord_"), 10, 64)
	require.NoError(t, err)
	assert.Positive(t, n)
}
