package slot_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/slot"
	"github.com/mabrarov/echo-server-go/strand"
)

func newFixture() (*slot.Service, *strand.Strand) {
	return slot.NewService(), strand.New(8)
}

func TestStoreThenPostFiresWithArg(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	var got int
	done := make(chan struct{})
	s.Store(func(a int) { got = a; close(done) })

	require.NoError(t, s.Post(42))
	<-done
	require.Equal(t, 42, got)
}

func TestPostOnEmptyReportsError(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	err := s.Post(1)
	require.ErrorIs(t, err, slot.ErrEmpty)
}

func TestStoreReplacesPriorOccupant(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	var fired1, fired2 bool
	s.Store(func(int) { fired1 = true })
	s.Store(func(int) { fired2 = true })

	done := make(chan struct{})
	go func() {
		_ = s.Post(0)
		close(done)
	}()
	<-done
	time.Sleep(10 * time.Millisecond)
	require.False(t, fired1)
	require.True(t, fired2)
}

func TestClearDestroysStoredCallable(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	s.Store(func(int) {})
	require.False(t, s.Empty())
	s.Clear()
	require.True(t, s.Empty())
}

func TestServiceShutdownClearsEveryLiveSlot(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	var fired int32 = 0
	var mu sync.Mutex
	slots := make([]*slot.Slot[int], 10)
	for i := range slots {
		slots[i] = slot.NewSlot[int](svc, str)
		slots[i].Store(func(int) {
			mu.Lock()
			fired++
			mu.Unlock()
		})
	}

	svc.Shutdown()

	for _, s := range slots {
		require.True(t, s.Empty())
		require.ErrorIs(t, s.Post(0), slot.ErrEmpty)
	}
	mu.Lock()
	require.Equal(t, int32(0), fired)
	mu.Unlock()
}

func TestStoreAfterShutdownIsNoop(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	svc.Shutdown()
	s.Store(func(int) { t.Fatal("should never fire") })
	require.True(t, s.Empty())
}

func TestPlainStoreHasNoTarget(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	s := slot.NewSlot[int](svc, str)
	s.Store(func(int) {})
	require.False(t, s.HasTarget())
	require.Nil(t, s.Target())
}

func TestStoreTargetedExposesTargetUntilFired(t *testing.T) {
	svc, str := newFixture()
	defer str.Close()

	type owner struct{ name string }
	o := &owner{name: "conn-7"}

	s := slot.NewSlot[int](svc, str)
	s.StoreTargeted(func(int) {}, o)
	require.True(t, s.HasTarget())
	require.Same(t, o, s.Target())

	require.NoError(t, s.Post(0))
	require.True(t, s.Empty())
	require.Nil(t, s.Target())
}
