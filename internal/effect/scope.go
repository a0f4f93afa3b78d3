package effect

// Cleanup undoes the work of one effect run. It may be nil.
type Cleanup func()

// EffectFunc runs a side effect for state and returns its cleanup
type EffectFunc[S any] func(state S) Cleanup

// Scope applies a fixed list of effects, in the order they were registered,
// after every committed state. The cleanup from an effect's previous run is
// called right before that effect runs again.
//
// Like Lifecycle, a Scope is not safe for concurrent use.
type Scope[S any] struct {
	effects  []EffectFunc[S]
	cleanups []Cleanup
}

// NewScope creates an empty scope
func NewScope[S any]() *Scope[S] {
	return &Scope[S]{}
}

// Use registers an effect. Effects run in registration order.
func (s *Scope[S]) Use(fn EffectFunc[S]) {
	s.effects = append(s.effects, fn)
	s.cleanups = append(s.cleanups, nil)
}

// Commit runs every effect against state
func (s *Scope[S]) Commit(state S) {
	for i, fn := range s.effects {
		if c := s.cleanups[i]; c != nil {
			s.cleanups[i] = nil
			c()
		}
		s.cleanups[i] = fn(state)
	}
}

// Dispose runs the pending cleanups in registration order
func (s *Scope[S]) Dispose() {
	for i, c := range s.cleanups {
		if c != nil {
			s.cleanups[i] = nil
			c()
		}
	}
}

// Len returns the number of registered effects
func (s *Scope[S]) Len() int {
	return len(s.effects)
}
