package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrderPerGroup(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	var got []int

	done := make(chan struct{})
	count := 0
	b.Join("sub1", "job-1", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Payload.(int))
		count++
		if count == 5 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		b.Publish("job-1", KindProgressUpdate, i)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestBus_LeaveRemovesExactMembership(t *testing.T) {
	b := NewBus()
	var delivered int32
	var mu sync.Mutex
	b.Join("sub1", "job-1", func(Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	b.Join("sub1", GlobalGroup, func(Event) {})

	b.Leave("sub1", "job-1")
	b.Publish("job-1", KindProgressUpdate, 1)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, delivered)

	// GlobalGroup membership must still be intact.
	b.mu.RLock()
	_, stillJoined := b.byGroup[GlobalGroup][membershipKey{"sub1", GlobalGroup}]
	b.mu.RUnlock()
	require.True(t, stillJoined)
}

func TestBus_SlowSubscriberNeverBlocksOthers(t *testing.T) {
	b := NewBus()
	blocked := make(chan struct{})
	b.Join("slow", "g", func(Event) { <-blocked })

	fastReceived := make(chan struct{}, 1)
	b.Join("fast", "g", func(Event) {
		select {
		case fastReceived <- struct{}{}:
		default:
		}
	})

	b.Publish("g", KindSystemNotification, "hello")

	select {
	case <-fastReceived:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was blocked by slow one")
	}
	close(blocked)
}

func TestBus_DropsOldestWhenQueueFull(t *testing.T) {
	b := NewBus()
	entered := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan int, QueueSize+10)
	first := true
	b.Join("sub", "g", func(ev Event) {
		if first {
			first = false
			close(entered)
			<-release
		}
		delivered <- ev.Payload.(int)
	})

	// Published first so the goroutine dequeues it and blocks, guaranteeing
	// every subsequent publish below lands purely in the backed-up queue.
	b.Publish("g", KindProgressUpdate, 0)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for consumer to block")
	}

	const extra = QueueSize + 4
	for i := 1; i <= extra; i++ {
		b.Publish("g", KindProgressUpdate, i)
	}
	close(release)

	require.Equal(t, 0, <-delivered)

	var last int
	timeout := time.After(time.Second)
	for i := 0; i < QueueSize; i++ {
		select {
		case v := <-delivered:
			last = v
		case <-timeout:
			t.Fatal("timed out draining deliveries")
		}
	}
	require.Equal(t, extra, last)
}
