package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishesToSubscribersOfType(t *testing.T) {
	bus := NewBus()
	var created []int64
	bus.Subscribe(TypeAppointmentCreated, func(e Event) {
		created = append(created, e.AppointmentID)
		assert.False(t, e.CreatedAt.IsZero())
	})

	bus.Publish(Event{Type: TypeAppointmentCreated, AppointmentID: 7})
	bus.Publish(Event{Type: TypePaymentFailed, AppointmentID: 8})

	assert.Equal(t, []int64{7}, created)
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Error("boom") })
}

func TestCollectorDrain(t *testing.T) {
	bus := NewBus()
	c := NewCollector(bus)

	bus.Error("failed")
	bus.Success("done")

	got := c.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, Notice{Level: LevelError, Message: "failed"}, got[0])
	assert.Equal(t, LevelSuccess, got[1].Level)
	assert.Empty(t, c.Drain())
}
