package ringbuf_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/ringbuf"
)

func TestInitialStateAllPrepared(t *testing.T) {
	b := ringbuf.New(16)
	require.Equal(t, 16, b.PreparedLen())
	require.Equal(t, 0, b.DataLen())
	require.Equal(t, 16, b.Capacity())
}

func TestCommitMovesPreparedToData(t *testing.T) {
	b := ringbuf.New(16)
	b.Commit(5)
	require.Equal(t, 11, b.PreparedLen())
	require.Equal(t, 5, b.DataLen())
}

func TestConsumeMovesDataToPrepared(t *testing.T) {
	b := ringbuf.New(16)
	b.Commit(5)
	b.Consume(5)
	require.Equal(t, 16, b.PreparedLen())
	require.Equal(t, 0, b.DataLen())
}

func TestCommitPanicsOnOversize(t *testing.T) {
	b := ringbuf.New(4)
	require.Panics(t, func() { b.Commit(5) })
}

func TestConsumePanicsOnOversize(t *testing.T) {
	b := ringbuf.New(4)
	require.Panics(t, func() { b.Consume(1) })
}

func TestResetReturnsToAllPrepared(t *testing.T) {
	b := ringbuf.New(8)
	b.Commit(3)
	b.Reset()
	require.Equal(t, 8, b.PreparedLen())
	require.Equal(t, 0, b.DataLen())
}

func TestDataAndPreparedClipToMax(t *testing.T) {
	b := ringbuf.New(16)
	b.Commit(10)
	seg := b.Data(4)
	require.Equal(t, 4, seg.Len())
}

func TestWrapSplitsIntoTwoSegments(t *testing.T) {
	b := ringbuf.New(8)
	b.Commit(6)
	b.Consume(6) // both regions now start at offset 6: prepared wraps past the capacity boundary
	b.Commit(8)  // fill entirely: data starts at 6 and wraps
	seg := b.Data(0)
	require.Equal(t, 8, seg.Len())
	require.Equal(t, 2, len(seg[0]))
	require.Equal(t, 6, len(seg[1]))
}

// TestRoundTripInvariant exercises the universal property from the spec:
// for any sequence of legal commit/consume calls, |data| + |prepared|
// equals capacity after every step.
func TestRoundTripInvariant(t *testing.T) {
	const capacity = 37
	b := ringbuf.New(capacity)
	rng := rand.New(rand.NewSource(1))

	var sent []byte
	var committed []byte
	next := byte(0)

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 && b.PreparedLen() > 0 {
			n := rng.Intn(b.PreparedLen()) + 1
			for j := 0; j < n; j++ {
				committed = append(committed, next)
				next++
			}
			b.Commit(n)
		} else if b.DataLen() > 0 {
			n := rng.Intn(b.DataLen()) + 1
			sent = append(sent, committed[len(sent):len(sent)+n]...)
			b.Consume(n)
		}

		require.Equal(t, capacity, b.DataLen()+b.PreparedLen())
	}
}
