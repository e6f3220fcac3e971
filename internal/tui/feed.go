package tui

import (
	"context"

	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/protocol"
)

// PresenceReceiver is the part of ssdp.Listener the monitor needs.
type PresenceReceiver interface {
	RecvContext(ctx context.Context) (protocol.PresenceEvent, error)
}

// PresenceFeed pumps notifications from rx into a channel until ctx is done
// or the receiver fails. The channel is closed when the pump stops.
func PresenceFeed(ctx context.Context, rx PresenceReceiver) <-chan protocol.PresenceEvent {
	ch := make(chan protocol.PresenceEvent, 16)
	go func() {
		defer close(ch)
		for {
			ev, err := rx.RecvContext(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.Warn("Presence feed stopped", zap.Error(err))
				}
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
