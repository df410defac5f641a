package strand_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/strand"
)

func TestPostRunsInFIFOOrder(t *testing.T) {
	s := strand.New(16)
	defer s.Close()

	var (
		mu  sync.Mutex
		got []int
	)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		s.Post(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestPostNeverRunsConcurrently(t *testing.T) {
	s := strand.New(16)
	defer s.Close()

	var running int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		s.Post(func() {
			defer wg.Done()
			if atomic.AddInt32(&running, 1) != 1 {
				t.Error("concurrent execution on strand")
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	wg.Wait()
}

func TestWrapPostsFromOutsideGoroutine(t *testing.T) {
	s := strand.New(1)
	defer s.Close()

	done := make(chan struct{})
	wrapped := strand.Wrap(s, func() { close(done) })

	go wrapped()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wrapped closure never ran on strand")
	}
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	s := strand.New(4)
	var n int32
	for i := 0; i < 4; i++ {
		s.Post(func() { atomic.AddInt32(&n, 1) })
	}
	s.Close()
	require.Equal(t, int32(4), n)
}
