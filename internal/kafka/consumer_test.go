package kafka

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Key sama harus selalu jatuh ke worker yang sama: urutan event per order
// dijaga walau pool-nya paralel.
func TestShardFor_SameKeySameShard(t *testing.T) {
	key := []byte("order-123")
	want := shardFor(key, 4)
	for i := 0; i < 100; i++ {
		assert.Equal(t, want, shardFor(key, 4))
	}
	assert.GreaterOrEqual(t, want, 0)
	assert.Less(t, want, 4)
}

func TestShardFor_DegenerateCases(t *testing.T) {
	assert.Equal(t, 0, shardFor(nil, 4))
	assert.Equal(t, 0, shardFor([]byte{}, 4))
	assert.Equal(t, 0, shardFor([]byte("order-1"), 1))
}

func TestShardFor_SpreadsDistinctKeys(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 64; i++ {
		seen[shardFor([]byte(fmt.Sprintf("order-%d", i)), 4)] = true
	}
	assert.Greater(t, len(seen), 1, "distinct keys should not all land on one worker")
}
