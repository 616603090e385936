package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndSink(t *testing.T) {
	bus := NewBus()

	var sunk []Type
	bus.AddSink(func(e Event) { sunk = append(sunk, e.Type) })

	ch, cancel := bus.Subscribe(1)
	bus.Publish(DepositCreated, map[string]string{"handle": "0x01"})
	bus.Publish(ActionRelayed, nil) // dropped: buffer full

	evt := <-ch
	assert.Equal(t, DepositCreated, evt.Type)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, []Type{DepositCreated, ActionRelayed}, sunk)

	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)

	bus.Publish(ActionProcessed, nil) // no subscribers left
	Nop{}.Publish(ActionProcessed, nil)
}
