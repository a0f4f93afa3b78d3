package effect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_RunsEffectsInOrder(t *testing.T) {
	var log []string
	s := NewScope[int]()
	s.Use(func(n int) Cleanup {
		log = append(log, fmt.Sprintf("title %d", n))
		return nil
	})
	s.Use(func(n int) Cleanup {
		log = append(log, fmt.Sprintf("subscribe %d", n))
		return func() { log = append(log, fmt.Sprintf("unsubscribe %d", n)) }
	})

	s.Commit(100)
	s.Commit(200)
	s.Dispose()

	assert.Equal(t, []string{
		"title 100",
		"subscribe 100",
		"title 200",
		"unsubscribe 100",
		"subscribe 200",
		"unsubscribe 200",
	}, log)
	assert.Equal(t, 2, s.Len())
}

func TestScope_DisposeIsIdempotent(t *testing.T) {
	cleanups := 0
	s := NewScope[string]()
	s.Use(func(string) Cleanup { return func() { cleanups++ } })

	s.Dispose()
	assert.Zero(t, cleanups)

	s.Commit("a")
	s.Dispose()
	s.Dispose()
	assert.Equal(t, 1, cleanups)

	s.Commit("b")
	s.Dispose()
	assert.Equal(t, 2, cleanups)
}

func TestScope_EmptyCommit(t *testing.T) {
	s := NewScope[int]()
	s.Commit(1)
	s.Dispose()
	assert.Zero(t, s.Len())
}
