package feed

import (
	"strconv"

	"github.com/bytedance/sonic"
)

// Control frame types understood by the feed server.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameOpenTunnel  = "openTunnel"
	frameCloseTunnel = "closeTunnel"
)

type controlFrame struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic,omitempty"`
	NewTunnelID    string `json:"newTunnelId,omitempty"`
	TunnelID       string `json:"tunnelId,omitempty"`
	PrivateChannel bool   `json:"privateChannel,omitempty"`
	Response       bool   `json:"response"`
}

func (f controlFrame) encode() ([]byte, error) {
	return sonic.Marshal(f)
}

func subscribeFrame(id, channel string, private bool, tunnelID string) controlFrame {
	return controlFrame{
		ID:             id,
		Type:           frameSubscribe,
		Topic:          channel,
		TunnelID:       tunnelID,
		PrivateChannel: private,
		Response:       true,
	}
}

func unsubscribeFrame(id, channel string) controlFrame {
	return controlFrame{
		ID:       id,
		Type:     frameUnsubscribe,
		Topic:    channel,
		Response: true,
	}
}

func openTunnelFrame(id, channel, tunnelID string) controlFrame {
	return controlFrame{
		ID:          id,
		Type:        frameOpenTunnel,
		Topic:       channel,
		NewTunnelID: tunnelID,
		Response:    true,
	}
}

func closeTunnelFrame(id, channel, tunnelID string) controlFrame {
	return controlFrame{
		ID:       id,
		Type:     frameCloseTunnel,
		Topic:    channel,
		TunnelID: tunnelID,
		Response: true,
	}
}

// nextID returns a millisecond timestamp, bumped past the previous id when
// two frames land in the same millisecond.
func (m *Manager) nextID() string {
	now := m.now().UnixMilli()
	for {
		last := m.lastID.Load()
		next := max(now, last+1)
		if m.lastID.CompareAndSwap(last, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}
