package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"private-lending/internal/events"
)

func TestHandleEvents_FiltersByType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := events.NewBus()
	r := gin.New()
	r.GET("/ws/events", NewWebSocketHandler(bus).HandleEvents)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?types=action.processed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	bus.Publish(events.DepositCreated, map[string]string{"handle": "0x01"})
	bus.Publish(events.ActionProcessed, map[string]string{"handle": "0x02"})

	var evt struct {
		Type events.Type       `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, events.ActionProcessed, evt.Type)
	assert.Equal(t, "0x02", evt.Data["handle"])
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	filter := parseTypes("deposit.created, ,action.relayed")
	assert.Len(t, filter, 2)
	assert.True(t, filter[events.DepositCreated])
	assert.True(t, filter[events.ActionRelayed])
}
