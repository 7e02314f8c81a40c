package alerting

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Channel pairs a notifier with the name used in errors and logs.
type Channel struct {
	Name     string
	Notifier Notifier
}

// Multi fans a notification out to every channel. One failing channel does
// not stop the others; all failures are returned joined.
type Multi struct {
	channels []Channel
}

// NewMulti builds a fan-out notifier, skipping nil notifiers.
func NewMulti(channels ...Channel) *Multi {
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Notifier != nil {
			out = append(out, ch)
		}
	}
	return &Multi{channels: out}
}

// Len returns the number of active channels.
func (m *Multi) Len() int { return len(m.channels) }

// Names returns the channel names in registration order.
func (m *Multi) Names() []string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name
	}
	return names
}

// Notify sends to all channels concurrently.
func (m *Multi) Notify(ctx context.Context, note Notification) error {
	errs := make([]error, len(m.channels))
	var g errgroup.Group
	g.SetLimit(4)
	for i, ch := range m.channels {
		g.Go(func() error {
			if err := ch.Notifier.Notify(ctx, note); err != nil {
				errs[i] = fmt.Errorf("%s: %w", ch.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

var _ Notifier = (*Multi)(nil)
