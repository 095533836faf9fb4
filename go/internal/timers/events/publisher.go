package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Publisher is an interface that defines our publisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher only logs events. Used when no message bus is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("user_id", event.UserID).
		Int("case_number", event.CaseNumber).
		Msg("publishing event")
	return nil
}

// MultiPublisher fans an event out to several publishers. Every publisher is
// attempted; the returned error joins the individual failures.
type MultiPublisher struct {
	mu         sync.RWMutex
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Add registers another publisher
func (p *MultiPublisher) Add(publisher Publisher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishers = append(p.publishers, publisher)
}

func (p *MultiPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	publishers := p.publishers
	p.mu.RUnlock()

	var errs []error
	for _, pub := range publishers {
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
