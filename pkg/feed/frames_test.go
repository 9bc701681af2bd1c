package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlFrame_Encode(t *testing.T) {
	tests := []struct {
		name  string
		frame controlFrame
		want  string
	}{
		{
			name:  "public_subscribe",
			frame: subscribeFrame("1", "/contractMarket/ticker:XBTUSDM", false, ""),
			want:  `{"id":"1","type":"subscribe","topic":"/contractMarket/ticker:XBTUSDM","response":true}`,
		},
		{
			name:  "private_subscribe_in_tunnel",
			frame: subscribeFrame("2", "/contractAccount/wallet", true, "t1"),
			want:  `{"id":"2","type":"subscribe","topic":"/contractAccount/wallet","tunnelId":"t1","privateChannel":true,"response":true}`,
		},
		{
			name:  "unsubscribe",
			frame: unsubscribeFrame("3", "/contractMarket/level2:XBTUSDM"),
			want:  `{"id":"3","type":"unsubscribe","topic":"/contractMarket/level2:XBTUSDM","response":true}`,
		},
		{
			name:  "open_tunnel",
			frame: openTunnelFrame("4", "/contractMarket/ticker:XBTUSDM", "t1"),
			want:  `{"id":"4","type":"openTunnel","topic":"/contractMarket/ticker:XBTUSDM","newTunnelId":"t1","response":true}`,
		},
		{
			name:  "close_tunnel",
			frame: closeTunnelFrame("5", "/contractMarket/ticker:XBTUSDM", "t1"),
			want:  `{"id":"5","type":"closeTunnel","topic":"/contractMarket/ticker:XBTUSDM","tunnelId":"t1","response":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.frame.encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestManager_NextID(t *testing.T) {
	m := &Manager{now: func() time.Time { return time.UnixMilli(1700000000000) }}

	assert.Equal(t, "1700000000000", m.nextID())
	assert.Equal(t, "1700000000001", m.nextID())

	m.now = func() time.Time { return time.UnixMilli(1800000000000) }
	assert.Equal(t, "1800000000000", m.nextID())
}

func TestManager_NextIDConcurrent(t *testing.T) {
	m := &Manager{now: time.Now}
	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := m.nextID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}
