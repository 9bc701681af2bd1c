package feed

import (
	"kumexfeed/pkg/core"
	"kumexfeed/pkg/topics"
)

// Subscribe sends a subscribe frame, or an openTunnel frame, for desc on
// the connection registered under desc.Topic and attaches onMessage.
// It reports whether the frame was sent.
func (m *Manager) Subscribe(desc topics.Descriptor, onMessage MessageHandler, mux *Tunnel) bool {
	if err := m.subscribe(desc, onMessage, mux); err != nil {
		m.logger.Error().Err(err).Str("topic", desc.Topic).Msg("subscribe failed")
		return false
	}
	return true
}

// Unsubscribe sends an unsubscribe frame, or a closeTunnel frame, on the
// connection registered under topic. The connection stays open.
func (m *Manager) Unsubscribe(topic string, onMessage MessageHandler, mux *Tunnel) bool {
	if err := m.unsubscribe(topic, onMessage, mux); err != nil {
		if core.IsConnectionMissing(err) {
			m.logger.Info().Str("topic", topic).Msg("nothing to unsubscribe")
		} else {
			m.logger.Error().Err(err).Str("topic", topic).Msg("unsubscribe failed")
		}
		return false
	}
	return true
}

func (m *Manager) subscribe(desc topics.Descriptor, onMessage MessageHandler, mux *Tunnel) error {
	if mux != nil {
		if err := validate.Struct(mux); err != nil {
			return core.NewFeedError(core.ErrorTypeInvalidRequest, "validate tunnel", err).WithTopic(desc.Topic)
		}
	}

	c, ok := m.registry.get(desc.Topic)
	m.logger.Debug().Strs("topics", m.registry.topics()).Msg("registered topics")
	if !ok {
		return core.NewFeedError(core.ErrorTypeConnectionMissing, "subscribe", core.ErrConnectionMissing).WithTopic(desc.Topic)
	}

	if mux == nil && c.isSubscribed() {
		m.logger.Info().Str("topic", desc.Topic).Msg("already subscribed, unsubscribing first")
		if err := m.unsubscribe(desc.Topic, onMessage, nil); err != nil {
			return err
		}
	}

	var frame controlFrame
	switch {
	case mux != nil && mux.OpenTunnel:
		frame = openTunnelFrame(m.nextID(), desc.Channel, mux.TunnelID)
	case mux != nil && !mux.CloseTunnel:
		frame = subscribeFrame(m.nextID(), desc.Channel, desc.Class.IsPrivate(), mux.TunnelID)
	default:
		frame = subscribeFrame(m.nextID(), desc.Channel, desc.Class.IsPrivate(), "")
	}

	if err := c.send(frame); err != nil {
		return core.NewFeedError(core.ErrorTypeSendFailure, "send "+frame.Type, err).WithTopic(desc.Topic)
	}
	c.setHandler(onMessage)
	if mux == nil {
		c.setSubscribed(true)
	}

	m.logger.Info().
		Str("topic", desc.Topic).
		Str("channel", desc.Channel).
		Str("type", frame.Type).
		Msg("subscribed")
	return nil
}

func (m *Manager) unsubscribe(topic string, onMessage MessageHandler, mux *Tunnel) error {
	if mux != nil {
		if err := validate.Struct(mux); err != nil {
			return core.NewFeedError(core.ErrorTypeInvalidRequest, "validate tunnel", err).WithTopic(topic)
		}
	}

	c, ok := m.registry.get(topic)
	if !ok {
		return core.NewFeedError(core.ErrorTypeConnectionMissing, "unsubscribe", core.ErrConnectionMissing).WithTopic(topic)
	}

	// the channel comes from the request the connection was opened with
	desc, err := c.req.descriptor()
	if err != nil {
		return core.NewFeedError(core.ErrorTypeInvalidRequest, "resolve topic", err).WithTopic(topic)
	}

	var frame controlFrame
	if mux != nil && mux.CloseTunnel {
		frame = closeTunnelFrame(m.nextID(), desc.Channel, mux.TunnelID)
	} else {
		frame = unsubscribeFrame(m.nextID(), desc.Channel)
	}

	if err := c.send(frame); err != nil {
		return core.NewFeedError(core.ErrorTypeSendFailure, "send "+frame.Type, err).WithTopic(topic)
	}
	c.setHandler(onMessage)
	if mux == nil {
		c.setSubscribed(false)
	}

	m.logger.Info().
		Str("topic", topic).
		Str("channel", desc.Channel).
		Str("type", frame.Type).
		Msg("unsubscribed")
	return nil
}
