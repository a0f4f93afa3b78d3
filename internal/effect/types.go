package effect

import (
	"errors"
	"sync"
)

// Lifecycle errors
var (
	ErrSubscribeFailed   = errors.New("subscribe failed")
	ErrUnsubscribeFailed = errors.New("unsubscribe failed")
)

// Callback is the stable handler reference registered with an external source.
// Sources match subscribe and unsubscribe calls by pointer identity, so a
// Callback must never be copied by value.
type Callback[S any] struct {
	mu      sync.RWMutex
	handler func(S)
}

// NewCallback creates a callback around handler
func NewCallback[S any](handler func(S)) *Callback[S] {
	return &Callback[S]{handler: handler}
}

// Invoke delivers a status to the current handler
func (c *Callback[S]) Invoke(status S) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(status)
	}
}

// setHandler swaps the handler without changing the callback identity
func (c *Callback[S]) setHandler(handler func(S)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// SubscribeFunc registers cb for status updates of identity
type SubscribeFunc[K comparable, S any] func(identity K, cb *Callback[S]) error

// UnsubscribeFunc removes the registration made with the same identity and cb
type UnsubscribeFunc[K comparable, S any] func(identity K, cb *Callback[S]) error

// Op names an external call made by a Lifecycle
type Op string

const (
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
)

// Observer receives a notification after every external call made by a Lifecycle.
type Observer interface {
	Subscribed()
	Unsubscribed()
	Failed(op Op)
}

type nopObserver struct{}

func (nopObserver) Subscribed()   {}
func (nopObserver) Unsubscribed() {}
func (nopObserver) Failed(Op)     {}
