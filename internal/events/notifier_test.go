package events

import (
	"testing"

	"github.com/gstbill/gstbill/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishReachesSubscribers(t *testing.T) {
	n := NewNotifier()
	a := n.Subscribe()
	b := n.Subscribe()

	ev := Saved{
		Kind:     models.KindProduct,
		EntityID: "p1",
		Action:   models.ActionCreate,
		Counts:   models.Counts{Products: 1, PendingSync: 1},
	}
	n.Publish(ev)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
}

func TestNotifier_SlowSubscriberDoesNotBlock(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()

	for i := 0; i < 40; i++ {
		n.Publish(Saved{Kind: models.KindCustomer, EntityID: "c"})
	}

	// buffer is 16; the rest were dropped without blocking Publish
	assert.Len(t, ch, 16)
}
