package rangepatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRegistry(t *testing.T) {
	r := newRunRegistry()
	r.add(mk(10, 14, 6)) // diagonal 4, old [10,16)
	r.add(mk(40, 3, 8))  // diagonal -37, old [40,48)

	t.Run("hit", func(t *testing.T) {
		run, ok := r.lookup(12, 16)
		assert.True(t, ok)
		assert.Equal(t, Range{10, 16}, run)

		run, ok = r.lookup(10, 14)
		assert.True(t, ok)
		assert.Equal(t, Range{10, 16}, run)
	})

	t.Run("end is exclusive", func(t *testing.T) {
		_, ok := r.lookup(16, 20)
		assert.False(t, ok)
	})

	t.Run("other diagonal", func(t *testing.T) {
		_, ok := r.lookup(12, 17)
		assert.False(t, ok)
	})

	t.Run("same shard, other diagonal", func(t *testing.T) {
		_, ok := r.lookup(12, 12+4+registryShards)
		assert.False(t, ok)
		assert.Same(t, r.shard(4), r.shard(4+registryShards))
	})

	t.Run("negative diagonal", func(t *testing.T) {
		run, ok := r.lookup(47, 10)
		assert.True(t, ok)
		assert.Equal(t, Range{40, 48}, run)

		_, ok = r.lookup(47, 11)
		assert.False(t, ok)
		assert.Same(t, r.shard(-37), r.shard(-37))
	})
}

func TestRunRegistryConcurrent(t *testing.T) {
	r := newRunRegistry()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				o := i * 10
				r.add(mk(o, o+g-4, 5))
				r.lookup(o+2, o+g-2)
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 8; g++ {
		for i := 0; i < 200; i++ {
			o := i * 10
			_, ok := r.lookup(o+4, o+g)
			assert.True(t, ok, "run at %d on diagonal %d", o, g-4)
		}
	}
}
