package services

import (
	"testing"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewNotificationHub(4)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)

	jobID := uuid.New()
	hub.Publish(models.JobEvent{JobID: jobID, Status: models.JobStatusProcessing})

	eventA := <-a.C
	eventB := <-b.C
	assert.Equal(t, jobID, eventA.JobID)
	assert.Equal(t, jobID, eventB.JobID)
	assert.False(t, eventA.At.IsZero(), "publish should stamp the event time")
}

func TestHubDropsOldestWhenSubscriberLags(t *testing.T) {
	hub := NewNotificationHub(2)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		hub.Publish(models.JobEvent{Progress: float64(i)})
	}

	// Buffer depth is 2: only the newest two events survive.
	first := <-sub.C
	second := <-sub.C
	assert.Equal(t, float64(3), first.Progress)
	assert.Equal(t, float64(4), second.Progress)
	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected extra event with progress %v", extra.Progress)
	default:
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewNotificationHub(1)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		// Nobody reads sub.C; publishing must still return.
		for i := 0; i < 100; i++ {
			hub.Publish(models.JobEvent{Progress: float64(i)})
		}
		close(done)
	}()
	<-done
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewNotificationHub(2)
	sub := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount())
	_, open := <-sub.C
	assert.False(t, open)

	// Double unsubscribe must not panic.
	hub.Unsubscribe(sub)
}
