package rangepatch

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(oldStart, newStart, size int) Match {
	return Match{
		Old:  Range{oldStart, oldStart + size},
		New:  Range{newStart, newStart + size},
		Size: size,
	}
}

func TestResolve(t *testing.T) {
	t.Run("overlap in old keeps the longer", func(t *testing.T) {
		a := mk(0, 0, 10)
		b := mk(5, 20, 3)
		assert.Equal(t, []Match{a}, Resolve([]Match{b, a}))
	})

	t.Run("overlap in new keeps the longer", func(t *testing.T) {
		a := mk(0, 0, 4)
		b := mk(10, 2, 7)
		assert.Equal(t, []Match{b}, Resolve([]Match{a, b}))
	})

	t.Run("crossing keeps the longer", func(t *testing.T) {
		a := mk(0, 10, 6)
		b := mk(10, 0, 4)
		assert.Equal(t, []Match{a}, Resolve([]Match{a, b}))
		assert.Equal(t, []Match{a}, Resolve([]Match{b, a}))
	})

	t.Run("equal sizes go to the earlier old offset", func(t *testing.T) {
		a := mk(0, 0, 5)
		b := mk(3, 10, 5)
		assert.Equal(t, []Match{a}, Resolve([]Match{b, a}))
	})

	t.Run("equal sizes and old offsets go to the earlier new offset", func(t *testing.T) {
		a := mk(4, 2, 5)
		b := mk(4, 9, 5)
		assert.Equal(t, []Match{a}, Resolve([]Match{b, a}))
	})

	t.Run("compatible members are sorted by old offset", func(t *testing.T) {
		a := mk(0, 0, 5)
		b := mk(10, 8, 6)
		c := mk(20, 30, 7)
		assert.Equal(t, []Match{a, b, c}, Resolve([]Match{c, a, b}))
	})

	t.Run("a dropped member no longer blocks", func(t *testing.T) {
		// a beats b, b would have beaten c, a and c are compatible
		a := mk(0, 0, 10)
		b := mk(8, 8, 8)
		c := mk(14, 14, 6)
		for _, in := range [][]Match{{a, b, c}, {c, b, a}, {b, c, a}} {
			assert.Equal(t, []Match{a, c}, Resolve(in))
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		a := mk(3, 7, 5)
		assert.Equal(t, []Match{a}, Resolve([]Match{a, a, a}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Resolve(nil))
	})
}

func randomCandidates(r *rand.Rand, n int) []Match {
	ms := make([]Match, n)
	for i := range ms {
		ms[i] = mk(r.Intn(200), r.Intn(200), 1+r.Intn(20))
	}
	return ms
}

func checkInvariants(t *testing.T, ms []Match) {
	t.Helper()
	for i := range ms {
		for j := range ms {
			if i == j {
				continue
			}
			require.False(t, ms[i].Old.Overlaps(ms[j].Old), "old overlap %v %v", ms[i], ms[j])
			require.False(t, ms[i].New.Overlaps(ms[j].New), "new overlap %v %v", ms[i], ms[j])
			require.False(t, ms[i].Crosses(ms[j]), "crossing %v %v", ms[i], ms[j])
		}
		if i > 0 {
			require.Less(t, ms[i-1].Old.Start, ms[i].Old.Start)
			require.Less(t, ms[i-1].New.Start, ms[i].New.Start)
		}
	}
}

func TestResolveProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		cands := randomCandidates(r, 1+r.Intn(60))
		got := Resolve(cands)

		checkInvariants(t, got)

		// idempotent
		if diff := cmp.Diff(got, Resolve(got)); diff != "" {
			t.Fatalf("round %d: resolving twice changed the set (-first +second):\n%s", round, diff)
		}

		// independent of input order
		shuffled := append([]Match(nil), cands...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if diff := cmp.Diff(got, Resolve(shuffled)); diff != "" {
			t.Fatalf("round %d: input order changed the result (-sorted +shuffled):\n%s", round, diff)
		}

		// every dropped candidate lost to a kept one that outranks it
		kept := make(map[Match]bool)
		for _, m := range got {
			kept[m] = true
		}
		for _, c := range cands {
			if kept[c] {
				continue
			}
			beaten := false
			for _, m := range got {
				if m == c || (m.outranks(c) && m.Conflicts(c)) {
					beaten = true
					break
				}
			}
			assert.True(t, beaten, "round %d: %v dropped without a stronger conflict", round, c)
		}
	}
}

func TestBatchAdmit(t *testing.T) {
	var b batch

	small := mk(0, 0, 5)
	big := mk(2, 2, 20)
	apart := mk(40, 40, 5)
	newSide := mk(60, 1, 5)

	assert.True(t, b.admit(small))
	// first come wins inside a batch, regardless of length
	assert.False(t, b.admit(big))
	assert.True(t, b.admit(apart))
	assert.False(t, b.admit(newSide))

	assert.Equal(t, []Match{small, apart}, b.members)
	assert.Equal(t, []Match{big, newSide}, b.deferred)
	assert.Equal(t, 4, b.len())

	b.reset()
	assert.Equal(t, 0, b.len())
}

func TestAcceptedSet(t *testing.T) {
	a := mk(0, 0, 10)
	bm := mk(8, 8, 8)
	c := mk(14, 14, 6)

	s := newAcceptedSet()

	var first batch
	first.admit(bm)
	first.admit(c) // deferred behind bm
	assert.Equal(t, 1, s.merge(&first))
	assert.Equal(t, 1, s.len())

	var second batch
	second.admit(a)
	assert.Equal(t, 0, s.merge(&second)) // a displaces bm
	assert.Equal(t, []Match{a}, s.members)

	// c was only kept out of the live view; the frozen set considers it again
	assert.Equal(t, []Match{a, c}, s.freeze())
	assert.Equal(t, 2, s.len())
}
