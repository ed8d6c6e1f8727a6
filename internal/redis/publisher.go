package redis

import (
	"context"

	"gamebus/pkg/codec"
)

// Sender transmits an encoded payload. *Manager implements it.
type Sender interface {
	Send(ctx context.Context, channel, payload string) error
}

type Publisher struct {
	sender Sender
}

func NewPublisher(sender Sender) *Publisher {
	return &Publisher{sender: sender}
}

// Publish encodes value and sends it on channel. Encoding and send errors are
// returned unchanged; there is no retry.
func (p *Publisher) Publish(ctx context.Context, channel string, value any) error {
	payload, err := codec.Encode(value)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, channel, payload)
}

// PublishAsync encodes value synchronously, then sends it on its own
// goroutine and reports the outcome to done, which may be nil.
func (p *Publisher) PublishAsync(ctx context.Context, channel string, value any, done func(error)) error {
	payload, err := codec.Encode(value)
	if err != nil {
		return err
	}
	go func() {
		err := p.sender.Send(ctx, channel, payload)
		if done != nil {
			done(err)
		}
	}()
	return nil
}
