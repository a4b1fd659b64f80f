package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_ShowHide(t *testing.T) {
	c := NewChannel()
	assert.True(t, c.Current().Empty())

	n := c.Show("Chain id 1 not supported")
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Chain id 1 not supported", c.Current().Text)

	c.Hide()
	assert.True(t, c.Current().Empty())
	c.Hide()
	assert.True(t, c.Current().Empty(), "hide is idempotent")
}

func TestChannel_LastWriteWins(t *testing.T) {
	c := NewChannel()
	c.Show("first")
	c.ShowFrom("resolver", "second")
	assert.Equal(t, "second", c.Current().Text)
	assert.Equal(t, "resolver", c.Current().Source)
}

func TestChannel_HideFromIsScoped(t *testing.T) {
	tests := []struct {
		name        string
		postedBy    string
		clearedBy   string
		wantCleared bool
	}{
		{name: "own notification", postedBy: "resolver", clearedBy: "resolver", wantCleared: true},
		{name: "other producer", postedBy: "wallet", clearedBy: "resolver", wantCleared: false},
		{name: "unsourced notification", postedBy: "", clearedBy: "resolver", wantCleared: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChannel()
			c.ShowFrom(tt.postedBy, "warning")

			got := c.HideFrom(tt.clearedBy)
			assert.Equal(t, tt.wantCleared, got)
			assert.Equal(t, !tt.wantCleared, !c.Current().Empty())
		})
	}

	t.Run("empty slot", func(t *testing.T) {
		assert.False(t, NewChannel().HideFrom("resolver"))
	})
}

func TestChannel_Dismiss(t *testing.T) {
	c := NewChannel()
	old := c.Show("old")
	newer := c.Show("newer")

	assert.False(t, c.Dismiss(old.ID), "a superseded id does not dismiss the newer notification")
	assert.Equal(t, "newer", c.Current().Text)

	assert.True(t, c.Dismiss(newer.ID))
	assert.True(t, c.Current().Empty())
	assert.False(t, c.Dismiss(newer.ID))
}

func TestChannel_ConcurrentProducers(t *testing.T) {
	c := NewChannel()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				c.ShowFrom("resolver", fmt.Sprintf("Chain id %d not supported", n))
			} else {
				c.HideFrom("resolver")
			}
		}(i)
	}
	wg.Wait()

	cur := c.Current()
	if !cur.Empty() {
		assert.Equal(t, "resolver", cur.Source)
		assert.Contains(t, cur.Text, "not supported")
	}

	// after the writers finish, the next operation alone decides the state
	c.ShowFrom("resolver", "final")
	assert.Equal(t, "final", c.Current().Text)
}

func TestChannel_Subscribe(t *testing.T) {
	c := NewChannel()
	ch, cancel := c.Subscribe()
	defer cancel()

	require.True(t, (<-ch).Empty())
	c.Show("hello")

	select {
	case n := <-ch:
		assert.Equal(t, "hello", n.Text)
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
}
