// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqtt

import (
	"context"
)

// Run connects to the broker and bridges device until ctx is done.
func Run(ctx context.Context, cfg Config, topic string, device Toggler) error {
	var bridge *Bridge
	ready := make(chan struct{})

	onConnect := cfg.OnConnect
	cfg.OnConnect = func(c *Client) {
		<-ready
		if err := c.Subscribe(bridge.CommandTopic(), 1, bridge.HandleCommand); err != nil {
			c.logger.Error().Err(err).Msg("subscribe failed")
		}
		if onConnect != nil {
			onConnect(c)
		}
	}

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	bridge = NewBridge(topic, device, client, cfg.Logger)
	close(ready)

	bridge.Run(ctx)
	client.Disconnect(250)
	return nil
}
