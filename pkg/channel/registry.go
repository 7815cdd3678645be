package channel

import (
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// Registry maps channels to their providers. Registration is validated at
// construction time: unknown channels, nil providers, mismatched channels
// and duplicates are all rejected, so a fully built Registry is known-good.
// The registry is immutable after construction and safe for concurrent reads.
type Registry struct {
	providers map[notify.Channel]Provider
}

// NewRegistry builds a registry from the given providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[notify.Channel]Provider, len(providers)),
	}

	for _, p := range providers {
		if p == nil {
			return nil, ErrNilProvider
		}
		ch := p.Channel()
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if _, exists := r.providers[ch]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, ch)
		}
		r.providers[ch] = p
	}

	return r, nil
}

// MustNewRegistry builds a registry and panics on invalid registration.
// Provider wiring is a startup concern; a misconfigured channel set should
// prevent the process from starting.
func MustNewRegistry(providers ...Provider) *Registry {
	r, err := NewRegistry(providers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the provider for the given channel.
func (r *Registry) Resolve(ch notify.Channel) (Provider, bool) {
	p, ok := r.providers[ch]
	return p, ok
}

// Channels returns the channels with a registered provider, in the stable
// channel order.
func (r *Registry) Channels() []notify.Channel {
	channels := make([]notify.Channel, 0, len(r.providers))
	for _, ch := range notify.Channels() {
		if _, ok := r.providers[ch]; ok {
			channels = append(channels, ch)
		}
	}
	return channels
}
