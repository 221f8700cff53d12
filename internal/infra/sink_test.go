package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/appquota/appquota/internal/domain"
)

// TestChannelSink_DeliversInOrder verifies buffered delivery
func TestChannelSink_DeliversInOrder(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Publish(domain.Event{Type: domain.EventWarningTriggered})
	sink.Publish(domain.Event{Type: domain.EventAppKilled})
	sink.Publish(domain.Event{Type: domain.EventUsageUpdated})

	assert.Equal(t, domain.EventWarningTriggered, (<-sink.Events()).Type)
	assert.Equal(t, domain.EventAppKilled, (<-sink.Events()).Type)
	assert.Equal(t, domain.EventUsageUpdated, (<-sink.Events()).Type)
}

// TestChannelSink_NeverBlocks verifies publishing past the buffer
// drops instead of stalling the cycle
func TestChannelSink_NeverBlocks(t *testing.T) {
	sink := NewChannelSink(1)

	sink.Publish(domain.Event{Type: domain.EventUsageUpdated, UsedSeconds: 1})
	// Buffer full and nobody draining; must return immediately.
	sink.Publish(domain.Event{Type: domain.EventUsageUpdated, UsedSeconds: 2})

	ev := <-sink.Events()
	assert.Equal(t, 1, ev.UsedSeconds)
	select {
	case ev := <-sink.Events():
		t.Fatalf("expected dropped event, got %+v", ev)
	default:
	}
}

// TestFanoutSink_ForwardsToAll verifies fan-out ordering
func TestFanoutSink_ForwardsToAll(t *testing.T) {
	a := NewChannelSink(2)
	b := NewChannelSink(2)
	fan := NewFanoutSink(NewLogSink(zap.NewNop()), a, b)

	fan.Publish(domain.Event{Type: domain.EventAppKilled, RuleID: "r1"})

	assert.Equal(t, "r1", (<-a.Events()).RuleID)
	assert.Equal(t, "r1", (<-b.Events()).RuleID)
}
