package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetSet(t *testing.T) {
	v := New(1)
	assert.Equal(t, 1, v.Get())

	v.Set(42)
	assert.Equal(t, 42, v.Get())
}

func TestValue_SubscribeReceivesCurrentValueFirst(t *testing.T) {
	v := New("initial")

	ch, cancel := v.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		assert.Equal(t, "initial", got)
	case <-time.After(time.Second):
		t.Fatal("did not receive the current value on subscribe")
	}
}

func TestValue_SubscribeReceivesUpdates(t *testing.T) {
	v := New(0)

	ch, cancel := v.Subscribe()
	defer cancel()
	<-ch // drain the initial value

	v.Set(1)
	v.Set(2)

	assert.Equal(t, 1, <-ch)
	assert.Equal(t, 2, <-ch)
}

func TestValue_CancelClosesChannel(t *testing.T) {
	v := New(0)

	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Setting after cancel must not panic or deliver.
	v.Set(99)
}

func TestValue_SlowSubscriberSeesLatestValue(t *testing.T) {
	v := New(0)

	ch, cancel := v.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer without reading. The writer must never
	// block, and the newest value must survive the overflow.
	for i := 1; i <= 100; i++ {
		v.Set(i)
	}

	var last int
	for {
		select {
		case got := <-ch:
			last = got
			continue
		default:
		}
		break
	}
	require.Equal(t, 100, last)
}

func TestValue_MultipleSubscribers(t *testing.T) {
	v := New("a")

	ch1, cancel1 := v.Subscribe()
	ch2, cancel2 := v.Subscribe()
	defer cancel1()
	defer cancel2()
	<-ch1
	<-ch2

	v.Set("b")
	assert.Equal(t, "b", <-ch1)
	assert.Equal(t, "b", <-ch2)
}
