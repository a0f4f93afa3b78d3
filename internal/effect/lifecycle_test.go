package effect

import (
	"errors"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op       Op
	identity int
	cb       *Callback[bool]
}

type recordingSource struct {
	calls       []call
	subErr      error
	unsubErr    error
	failSubOnce bool
}

func (r *recordingSource) subscribe(identity int, cb *Callback[bool]) error {
	r.calls = append(r.calls, call{op: OpSubscribe, identity: identity, cb: cb})
	if r.subErr != nil {
		err := r.subErr
		if r.failSubOnce {
			r.subErr = nil
		}
		return err
	}
	return nil
}

func (r *recordingSource) unsubscribe(identity int, cb *Callback[bool]) error {
	r.calls = append(r.calls, call{op: OpUnsubscribe, identity: identity, cb: cb})
	return r.unsubErr
}

func (r *recordingSource) ops() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, string(c.op)+":"+strconv.Itoa(c.identity))
	}
	return out
}

func newTestLifecycle(src *recordingSource) *Lifecycle[int, bool] {
	return NewLifecycle[int, bool](src.subscribe, src.unsubscribe, zerolog.Nop())
}

type countingObserver struct {
	subscribed, unsubscribed int
	failed                   map[Op]int
}

func (o *countingObserver) Subscribed()   { o.subscribed++ }
func (o *countingObserver) Unsubscribed() { o.unsubscribed++ }
func (o *countingObserver) Failed(op Op) {
	if o.failed == nil {
		o.failed = make(map[Op]int)
	}
	o.failed[op]++
}

func TestLifecycle_DocumentedSequence(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)
	handler := func(bool) {}

	require.NoError(t, l.Bind(100, handler))
	require.NoError(t, l.Bind(200, handler))
	require.NoError(t, l.Bind(300, handler))
	require.NoError(t, l.Dispose())

	assert.Equal(t, []string{
		"subscribe:100",
		"unsubscribe:100", "subscribe:200",
		"unsubscribe:200", "subscribe:300",
		"unsubscribe:300",
	}, src.ops())

	// every unsubscribe carries the callback of its matching subscribe
	subs := map[int]*Callback[bool]{}
	for _, c := range src.calls {
		switch c.op {
		case OpSubscribe:
			subs[c.identity] = c.cb
		case OpUnsubscribe:
			require.NotNil(t, c.cb)
			assert.Same(t, subs[c.identity], c.cb, "identity %d", c.identity)
		}
	}
	assert.NotSame(t, subs[100], subs[200])
	assert.False(t, l.Active())
}

func TestLifecycle_DistinctBindsAlternate(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	ids := []int{7, 3, 9, 1, 4, 8}
	for _, id := range ids {
		require.NoError(t, l.Bind(id, nil))
	}
	require.NoError(t, l.Dispose())

	want := []string{"subscribe:7"}
	for i := 1; i < len(ids); i++ {
		want = append(want, "unsubscribe:"+strconv.Itoa(ids[i-1]), "subscribe:"+strconv.Itoa(ids[i]))
	}
	want = append(want, "unsubscribe:8")
	assert.Equal(t, want, src.ops())
}

func TestLifecycle_SameIdentityIsNoop(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	require.NoError(t, l.Bind(42, nil))
	require.NoError(t, l.Bind(42, nil))
	require.NoError(t, l.Bind(42, nil))

	assert.Equal(t, []string{"subscribe:42"}, src.ops())
	id, ok := l.Current()
	assert.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestLifecycle_SameIdentityRefreshesHandler(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	var first, second int
	require.NoError(t, l.Bind(1, func(bool) { first++ }))
	cb := l.Callback()
	require.NoError(t, l.Bind(1, func(bool) { second++ }))

	assert.Same(t, cb, l.Callback())
	cb.Invoke(true)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestLifecycle_DoubleDispose(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	require.NoError(t, l.Bind(5, nil))
	require.NoError(t, l.Dispose())
	require.NoError(t, l.Dispose())

	assert.Equal(t, []string{"subscribe:5", "unsubscribe:5"}, src.ops())
}

func TestLifecycle_DisposeWithoutBind(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	require.NoError(t, l.Dispose())
	assert.Empty(t, src.calls)
	assert.Nil(t, l.Callback())
}

func TestLifecycle_RebindAfterDispose(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)

	require.NoError(t, l.Bind(1, nil))
	require.NoError(t, l.Dispose())
	require.NoError(t, l.Bind(1, nil))

	assert.Equal(t, []string{"subscribe:1", "unsubscribe:1", "subscribe:1"}, src.ops())
	assert.NotSame(t, src.calls[0].cb, src.calls[2].cb)
}

func TestLifecycle_SubscribeFailureLeavesInactive(t *testing.T) {
	boom := errors.New("boom")
	src := &recordingSource{subErr: boom, failSubOnce: true}
	l := newTestLifecycle(src)

	err := l.Bind(10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.ErrorIs(t, err, boom)
	assert.False(t, l.Active())

	// retry reaches the source again instead of being treated as bound
	require.NoError(t, l.Bind(10, nil))
	assert.Equal(t, []string{"subscribe:10", "subscribe:10"}, src.ops())
	assert.True(t, l.Active())
}

func TestLifecycle_SubscribeFailureAfterTeardown(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)
	require.NoError(t, l.Bind(1, nil))

	src.subErr = errors.New("down")
	err := l.Bind(2, nil)
	require.ErrorIs(t, err, ErrSubscribeFailed)
	assert.False(t, l.Active())

	// nothing left to tear down
	require.NoError(t, l.Dispose())
	assert.Equal(t, []string{"subscribe:1", "unsubscribe:1", "subscribe:2"}, src.ops())
}

func TestLifecycle_UnsubscribeFailureStillSubscribes(t *testing.T) {
	gone := errors.New("gone")
	src := &recordingSource{}
	l := newTestLifecycle(src)
	require.NoError(t, l.Bind(1, nil))

	src.unsubErr = gone
	err := l.Bind(2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsubscribeFailed)
	assert.ErrorIs(t, err, gone)
	assert.NotErrorIs(t, err, ErrSubscribeFailed)

	id, ok := l.Current()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, []string{"subscribe:1", "unsubscribe:1", "subscribe:2"}, src.ops())
}

func TestLifecycle_BothFailuresJoined(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)
	require.NoError(t, l.Bind(1, nil))

	src.unsubErr = errors.New("unsub")
	src.subErr = errors.New("sub")
	err := l.Bind(2, nil)
	assert.ErrorIs(t, err, ErrUnsubscribeFailed)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.False(t, l.Active())
}

func TestLifecycle_DisposeFailureClearsState(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)
	require.NoError(t, l.Bind(3, nil))

	src.unsubErr = errors.New("nope")
	err := l.Dispose()
	assert.ErrorIs(t, err, ErrUnsubscribeFailed)
	assert.False(t, l.Active())

	require.NoError(t, l.Dispose())
	assert.Len(t, src.calls, 2)
}

func TestLifecycle_Observer(t *testing.T) {
	src := &recordingSource{}
	l := newTestLifecycle(src)
	obs := &countingObserver{}
	l.SetObserver(obs)

	require.NoError(t, l.Bind(1, nil))
	require.NoError(t, l.Bind(2, nil))
	src.subErr = errors.New("x")
	require.Error(t, l.Bind(3, nil))

	assert.Equal(t, 2, obs.subscribed)
	assert.Equal(t, 2, obs.unsubscribed)
	assert.Equal(t, 1, obs.failed[OpSubscribe])
	assert.Zero(t, obs.failed[OpUnsubscribe])

	l.SetObserver(nil)
	src.subErr = nil
	require.NoError(t, l.Bind(4, nil))
	assert.Equal(t, 2, obs.subscribed)
}

func TestLifecycle_StringIdentity(t *testing.T) {
	var seen []string
	sub := func(id string, _ *Callback[int]) error { seen = append(seen, "+"+id); return nil }
	unsub := func(id string, _ *Callback[int]) error { seen = append(seen, "-"+id); return nil }
	l := NewLifecycle[string, int](sub, unsub, zerolog.Nop())

	require.NoError(t, l.Bind("alice", nil))
	require.NoError(t, l.Bind("bob", nil))
	require.NoError(t, l.Dispose())

	assert.Equal(t, []string{"+alice", "-alice", "+bob", "-bob"}, seen)
}
