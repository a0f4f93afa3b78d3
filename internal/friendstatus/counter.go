package friendstatus

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"presencegofer/internal/effect"
)

// TitleSink receives the title produced by the title effect
type TitleSink interface {
	SetTitle(title string)
}

// TitleFunc adapts a function to TitleSink
type TitleFunc func(title string)

// SetTitle implements TitleSink
func (f TitleFunc) SetTitle(title string) { f(title) }

// Title returns the title for a click count
func Title(count int) string {
	return fmt.Sprintf("You clicked %d times", count)
}

// WithCounter is a FriendStatus with a click counter whose value is mirrored
// into a title after mount and after every click.
type WithCounter struct {
	*FriendStatus

	mu      sync.Mutex
	count   int
	mounted bool
	scope   *effect.Scope[int]
}

// NewWithCounter creates an unmounted counter component writing titles to sink
func NewWithCounter(api API, sink TitleSink, logger zerolog.Logger) *WithCounter {
	c := &WithCounter{
		FriendStatus: New(api, logger),
		scope:        effect.NewScope[int](),
	}
	c.scope.Use(func(count int) effect.Cleanup {
		sink.SetTitle(Title(count))
		return nil
	})
	return c
}

// Mount applies the effects for the initial state
func (c *WithCounter) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return
	}
	c.mounted = true
	c.scope.Commit(c.count)
}

// Click increments the counter and re-applies the effects. It returns the new count.
func (c *WithCounter) Click() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if c.mounted {
		c.scope.Commit(c.count)
	}
	return c.count
}

// Count returns the number of clicks
func (c *WithCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Unmount runs the effect cleanups and drops the friend subscription
func (c *WithCounter) Unmount() error {
	c.mu.Lock()
	if c.mounted {
		c.mounted = false
		c.scope.Dispose()
	}
	c.mu.Unlock()
	return c.FriendStatus.Unmount()
}
