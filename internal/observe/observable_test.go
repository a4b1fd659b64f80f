package observe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetSet(t *testing.T) {
	v := New(1)
	assert.Equal(t, 1, v.Get())

	v.Set(2)
	assert.Equal(t, 2, v.Get())

	got := v.Update(func(n int) int { return n * 10 })
	assert.Equal(t, 20, got)
	assert.Equal(t, 20, v.Get())
}

func TestValue_SubscribeReceivesCurrentThenUpdates(t *testing.T) {
	v := New("a")
	ch, cancel := v.Subscribe()
	defer cancel()

	assert.Equal(t, "a", <-ch)

	v.Set("b")
	assert.Equal(t, "b", <-ch)
}

func TestValue_SlowSubscriberSeesLatest(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	defer cancel()

	for i := 1; i <= 100; i++ {
		v.Set(i)
	}
	assert.Equal(t, 100, <-ch, "intermediate values are conflated")

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra value %d", extra)
	default:
	}
}

func TestValue_CancelClosesChannel(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	<-ch

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	v.Set(1)
	assert.Equal(t, 1, v.Get(), "Set after cancel must not panic")
}

func TestValue_ConcurrentWriters(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update(func(cur int) int { return cur + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, v.Get())

	require.Eventually(t, func() bool {
		select {
		case got := <-ch:
			return got == 50
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
