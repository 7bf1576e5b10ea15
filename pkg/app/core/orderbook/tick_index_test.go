package orderbook

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTickIndexBasics(t *testing.T) {
	idx := newTickIndex()
	assert.Nil(t, idx.min())
	assert.Nil(t, idx.max())
	assert.Nil(t, idx.ceiling(0))

	for _, id := range []uint64{21, 10, 14, 13} {
		idx.getOrInit(id, Ask)
	}
	// existing ticks are returned, not replaced
	first := idx.find(13)
	require.NotNil(t, first)
	assert.Same(t, first, idx.getOrInit(13, Bid))
	assert.Equal(t, Ask, first.Side)
	assert.Equal(t, 4, idx.Len())

	assert.Equal(t, uint64(10), idx.min().ID)
	assert.Equal(t, uint64(21), idx.max().ID)
	assert.Equal(t, uint64(14), idx.ceiling(14).ID)
	assert.Equal(t, uint64(21), idx.ceiling(15).ID)
	assert.Nil(t, idx.ceiling(22))
	assert.Equal(t, uint64(14), idx.floor(20).ID)
	assert.Nil(t, idx.floor(9))

	var up []uint64
	idx.ascend(11, func(tk *Tick) bool {
		up = append(up, tk.ID)
		return true
	})
	assert.Equal(t, []uint64{13, 14, 21}, up)

	var down []uint64
	idx.descend(14, func(tk *Tick) bool {
		down = append(down, tk.ID)
		return tk.ID > 13
	})
	assert.Equal(t, []uint64{14, 13}, down)

	assert.True(t, idx.remove(14))
	assert.False(t, idx.remove(14))
	assert.Nil(t, idx.find(14))
	assert.Equal(t, 3, idx.Len())
}

// TestTickIndexMatchesSortedSet drives the tree with random inserts and removals
// and compares every query against a plain sorted slice.
func TestTickIndexMatchesSortedSet(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := newTickIndex()
		set := map[uint64]bool{}

		ops := rapid.IntRange(1, 200).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			id := rapid.Uint64Range(0, 64).Draw(t, "id")
			if rapid.IntRange(0, 2).Draw(t, "op") == 0 {
				if idx.remove(id) != set[id] {
					t.Fatalf("remove(%d) disagrees with set", id)
				}
				delete(set, id)
			} else {
				idx.getOrInit(id, Bid)
				set[id] = true
			}
		}

		want := make([]uint64, 0, len(set))
		for id := range set {
			want = append(want, id)
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

		var got []uint64
		idx.ascend(0, func(tk *Tick) bool {
			got = append(got, tk.ID)
			return true
		})
		if idx.Len() != len(want) || len(got) != len(want) {
			t.Fatalf("len = %d/%d, want %d", idx.Len(), len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ascend[%d] = %d, want %d", i, got[i], want[i])
			}
		}

		probe := rapid.Uint64Range(0, 70).Draw(t, "probe")
		i := sort.Search(len(want), func(i int) bool { return want[i] >= probe })
		if c := idx.ceiling(probe); (c == nil) != (i == len(want)) || (c != nil && c.ID != want[i]) {
			t.Fatalf("ceiling(%d) wrong", probe)
		}
		j := sort.Search(len(want), func(i int) bool { return want[i] > probe }) - 1
		if f := idx.floor(probe); (f == nil) != (j < 0) || (f != nil && f.ID != want[j]) {
			t.Fatalf("floor(%d) wrong", probe)
		}

		checkRedBlack(t, idx)
	})
}

// checkRedBlack asserts a black root, no red node with a red child and equal
// black height on every path.
func checkRedBlack(t *rapid.T, idx *tickIndex) {
	if idx.root.color != black {
		t.Fatalf("red root")
	}
	var walk func(n *node) int
	walk = func(n *node) int {
		if n == idx.nil {
			return 1
		}
		if n.color == red && (n.left.color == red || n.right.color == red) {
			t.Fatalf("red node %d has a red child", n.key)
		}
		l, r := walk(n.left), walk(n.right)
		if l != r {
			t.Fatalf("black height differs under %d: %d vs %d", n.key, l, r)
		}
		if n.color == black {
			return l + 1
		}
		return l
	}
	walk(idx.root)
}
