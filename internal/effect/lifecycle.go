package effect

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Lifecycle keeps at most one external subscription, bound to the identity
// given by the latest Bind. Teardown of the previous identity always
// completes before setup of the next one.
//
// A Lifecycle is not safe for concurrent use; callers serialize Bind and Dispose.
type Lifecycle[K comparable, S any] struct {
	subscribe   SubscribeFunc[K, S]
	unsubscribe UnsubscribeFunc[K, S]

	current  K
	callback *Callback[S]
	active   bool

	observer Observer
	logger   zerolog.Logger
}

// NewLifecycle creates a Lifecycle with no active subscription
func NewLifecycle[K comparable, S any](subscribe SubscribeFunc[K, S], unsubscribe UnsubscribeFunc[K, S], logger zerolog.Logger) *Lifecycle[K, S] {
	return &Lifecycle[K, S]{
		subscribe:   subscribe,
		unsubscribe: unsubscribe,
		observer:    nopObserver{},
		logger:      logger.With().Str("component", "effect-lifecycle").Logger(),
	}
}

// SetObserver sets the observer notified of external calls
func (l *Lifecycle[K, S]) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	l.observer = o
}

// Bind makes identity the subscribed identity.
//
// If identity equals the active one nothing is called externally; the handler
// is swapped inside the existing callback so later updates reach it. Otherwise
// the previous subscription is torn down first, then a new callback is
// subscribed. A failed unsubscribe does not stop the subscribe attempt; a
// failed subscribe leaves the Lifecycle inactive.
func (l *Lifecycle[K, S]) Bind(identity K, handler func(S)) error {
	if l.active && l.current == identity {
		l.callback.setHandler(handler)
		return nil
	}

	var unsubErr error
	if l.active {
		unsubErr = l.teardown()
	}

	cb := NewCallback(handler)
	if err := l.subscribe(identity, cb); err != nil {
		l.observer.Failed(OpSubscribe)
		l.logger.Debug().Err(err).Interface("identity", identity).Msg("subscribe failed")
		return errors.Join(unsubErr, fmt.Errorf("%w: identity %v: %w", ErrSubscribeFailed, identity, err))
	}
	l.observer.Subscribed()

	l.current = identity
	l.callback = cb
	l.active = true
	l.logger.Debug().Interface("identity", identity).Msg("subscribed")

	return unsubErr
}

// Dispose tears down the active subscription, if any. Calling it again is a no-op.
func (l *Lifecycle[K, S]) Dispose() error {
	if !l.active {
		return nil
	}
	return l.teardown()
}

// Current returns the bound identity and whether a subscription is active
func (l *Lifecycle[K, S]) Current() (K, bool) {
	return l.current, l.active
}

// Active reports whether a subscription is active
func (l *Lifecycle[K, S]) Active() bool {
	return l.active
}

// Callback returns the callback registered for the active subscription, or nil
func (l *Lifecycle[K, S]) Callback() *Callback[S] {
	if !l.active {
		return nil
	}
	return l.callback
}

// teardown unsubscribes the active identity and clears state whatever the outcome
func (l *Lifecycle[K, S]) teardown() error {
	prev, cb := l.current, l.callback

	var zero K
	l.current = zero
	l.callback = nil
	l.active = false

	if err := l.unsubscribe(prev, cb); err != nil {
		l.observer.Failed(OpUnsubscribe)
		l.logger.Debug().Err(err).Interface("identity", prev).Msg("unsubscribe failed")
		return fmt.Errorf("%w: identity %v: %w", ErrUnsubscribeFailed, prev, err)
	}
	l.observer.Unsubscribed()
	l.logger.Debug().Interface("identity", prev).Msg("unsubscribed")
	return nil
}
