package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDeliversToSubscribersOfJob(t *testing.T) {
	n := NewNotifier()
	unsubA, chA := n.Subscribe("job-a")
	defer unsubA()
	unsubB, chB := n.Subscribe("job-b")
	defer unsubB()

	n.Notify("job-a")

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("expected notification for job-a")
	}

	select {
	case <-chB:
		t.Fatal("job-b subscriber should not be notified")
	default:
	}
}

func TestNotifierCoalescesSignals(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job")
	defer unsub()

	n.Notify("job")
	n.Notify("job")

	<-ch
	select {
	case <-ch:
		t.Fatal("expected coalesced notifications")
	default:
	}
}

func TestNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier()
	unsub, ch := n.Subscribe("job")
	n.Notify("job")

	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)

	require.NotPanics(t, func() { n.Notify("job") })
}

func TestNotifierStopAll(t *testing.T) {
	n := NewNotifier()
	_, ch1 := n.Subscribe("a")
	_, ch2 := n.Subscribe("b")

	n.StopAll()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	assert.False(t, ok1)
	assert.False(t, ok2)
}
