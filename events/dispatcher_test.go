package events

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/colibri/pattern"
)

// printer returns a handler writing s to out, mimicking "print" handlers.
func printer(out *strings.Builder, s string) HandlerFunc {
	return func(context.Context, Event) error {
		out.WriteString(s)
		return nil
	}
}

func printName(out *strings.Builder) HandlerFunc {
	return func(_ context.Context, ev Event) error {
		out.WriteString(ev.Name())
		return nil
	}
}

func cancelAndPrint(out *strings.Builder, s string) HandlerFunc {
	return func(_ context.Context, ev Event) error {
		ev.Cancel()
		out.WriteString(s)
		return nil
	}
}

func TestDispatcher_BasicEvent(t *testing.T) {
	d := New()
	var out strings.Builder
	d.Handle("ok", printName(&out))

	ev, err := d.Emit(context.Background(), "ok")
	require.NoError(t, err)

	assert.Equal(t, "ok", out.String())
	assert.Equal(t, StateCompleted, ev.State())
}

func TestDispatcher_PlaceholderConstraints(t *testing.T) {
	tests := []struct {
		name     string
		register func(d *Dispatcher, out *strings.Builder)
		want     string
	}{
		{
			name: "where single value",
			register: func(d *Dispatcher, out *strings.Builder) {
				d.Handle("foo.{bar}", printName(out)).Where("bar", "x")
			},
			want: "foo.x",
		},
		{
			name: "where alternation",
			register: func(d *Dispatcher, out *strings.Builder) {
				d.Handle("foo.{bar}", printName(out)).Where("bar", "x|y")
			},
			want: "foo.yfoo.x",
		},
		{
			name: "inline alternation",
			register: func(d *Dispatcher, out *strings.Builder) {
				d.Handle("foo.{bar=x|y}", printName(out))
			},
			want: "foo.yfoo.x",
		},
		{
			name: "where in",
			register: func(d *Dispatcher, out *strings.Builder) {
				d.Handle("foo.{bar}", printName(out)).WhereIn("bar", "y", "x")
			},
			want: "foo.yfoo.x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			var out strings.Builder
			tt.register(d, &out)

			ctx := context.Background()
			for _, name := range []string{"foo.y", "foo.x", "foo.z"} {
				_, err := d.Emit(ctx, name)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestDispatcher_Priority(t *testing.T) {
	tests := []struct {
		name string
		foo  int
		bar  int
		want string
	}{
		{"default priority runs last registered first", 0, 0, "barfoo"},
		{"explicit priority wins", 1, 0, "foobar"},
		{"equal explicit priority runs last registered first", 1, 1, "barfoo"},
		{"negative priority runs after default", 0, -1, "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			var out strings.Builder
			d.Handle("foo", printer(&out, "foo"), WithPriority(tt.foo))
			d.Handle("foo", printer(&out, "bar"), WithPriority(tt.bar))

			_, err := d.Emit(context.Background(), "foo")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestDispatcher_Cancellation(t *testing.T) {
	t.Run("not cancelable ignores cancel", func(t *testing.T) {
		d := New()
		var out strings.Builder
		d.Handle("foo", printer(&out, "foo"))
		d.Handle("foo", cancelAndPrint(&out, "bar"))

		ev, err := d.Emit(context.Background(), "foo")
		require.NoError(t, err)
		assert.Equal(t, "barfoo", out.String())
		assert.False(t, ev.Cancelled())
		assert.Equal(t, StateCompleted, ev.State())
	})

	t.Run("cancelable stops after the cancelling handler", func(t *testing.T) {
		d := New()
		var out strings.Builder
		d.Handle("foo", printer(&out, "foo"))
		d.Handle("foo", cancelAndPrint(&out, "bar"))

		ev, err := d.Emit(context.Background(), "foo", Cancelable())
		require.NoError(t, err)
		assert.Equal(t, "bar", out.String())
		assert.True(t, ev.Cancelled())
		assert.Equal(t, StateCancelled, ev.State())
	})

	t.Run("different patterns share one order", func(t *testing.T) {
		d := New()
		var out strings.Builder
		d.Handle("foo", printer(&out, "foo"))
		d.Handle("foo", cancelAndPrint(&out, "bar"))
		d.Handle("f{=o{2}}", printer(&out, "baz"))

		_, err := d.Emit(context.Background(), "foo", Cancelable())
		require.NoError(t, err)
		assert.Equal(t, "bazbar", out.String())
	})

	t.Run("cancel skips later patterns entirely", func(t *testing.T) {
		d := New()
		var out strings.Builder
		d.Handle("{a}.{a}", printer(&out, "never"), WithPriority(-1))
		d.Handle("foo", cancelAndPrint(&out, "bar"))

		ev, err := d.Emit(context.Background(), "foo", Cancelable())
		require.NoError(t, err)
		assert.Equal(t, "bar", out.String())
		assert.True(t, ev.Cancelled())
	})
}

type dataEvent struct {
	*BaseEvent
	data string
}

func TestDispatcher_DispatchCustomEvent(t *testing.T) {
	d := New()
	var out strings.Builder
	d.Handle("foo", HandlerFunc(func(_ context.Context, ev Event) error {
		de, ok := ev.(*dataEvent)
		require.True(t, ok)
		out.WriteString(de.data)
		return nil
	}))

	ev := &dataEvent{BaseEvent: NewEvent("foo", false, nil), data: "test-data"}
	got, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.Same(t, ev, got)
	assert.Equal(t, "test-data", out.String())
}

func TestDispatcher_DispatchPreCancelled(t *testing.T) {
	d := New()
	var out strings.Builder
	d.Handle("foo", printer(&out, "ok"))

	ev := NewEvent("foo", true, nil)
	ev.Cancel()

	_, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Equal(t, StateCancelled, ev.State())
}

func TestDispatcher_DispatchNil(t *testing.T) {
	_, err := New().Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEventNil)
}

func TestDispatcher_ParamsPerHandler(t *testing.T) {
	d := New()
	var seen []pattern.Params

	record := HandlerFunc(func(_ context.Context, ev Event) error {
		seen = append(seen, ev.Params())
		return nil
	})
	d.Handle("user.{id}.{action}", record)
	d.Handle("user.{who}.saved", record)

	_, err := d.Emit(context.Background(), "user.7.saved", WithPayload("p"))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, pattern.Params{"who": "7"}, seen[0])
	assert.Equal(t, pattern.Params{"id": "7", "action": "saved"}, seen[1])
}

func TestDispatcher_PayloadAndState(t *testing.T) {
	d := New()
	var during State
	var payload any
	d.Handle("x", HandlerFunc(func(_ context.Context, ev Event) error {
		during = ev.State()
		payload = ev.Payload()
		return nil
	}))

	ev := NewEvent("x", false, 42)
	assert.Equal(t, StatePending, ev.State())

	_, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, during)
	assert.Equal(t, 42, payload)
	assert.Equal(t, StateCompleted, ev.State())
}

func TestDispatcher_HandlerErrorsDoNotStopDispatch(t *testing.T) {
	d := New()
	var out strings.Builder
	boom := errors.New("boom")

	d.Handle("foo", printer(&out, "second"))
	d.Handle("foo", HandlerFunc(func(context.Context, Event) error { return boom }))

	ev, err := d.Emit(context.Background(), "foo")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrHandlerFailed)
	assert.Equal(t, "second", out.String())
	assert.Equal(t, StateCompleted, ev.State())
}

func TestDispatcher_InvalidPattern(t *testing.T) {
	d := New()
	var out strings.Builder
	d.Handle("ok", printer(&out, "ok"), WithPriority(1))
	d.Handle("{a}.{a}", printer(&out, "never"))

	_, err := d.Emit(context.Background(), "ok")
	require.Error(t, err)

	var perr *pattern.PatternError
	assert.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, pattern.ErrDuplicatePlaceholder)
	assert.Equal(t, "ok", out.String())
}

func TestRegistration_WhereInvalidatesCompiledPattern(t *testing.T) {
	d := New()
	var out strings.Builder
	reg := d.Handle("foo.{bar}", printName(&out))

	ctx := context.Background()
	_, err := d.Emit(ctx, "foo.y")
	require.NoError(t, err)

	reg.Where("bar", "x")
	_, err = d.Emit(ctx, "foo.y")
	require.NoError(t, err)
	_, err = d.Emit(ctx, "foo.x")
	require.NoError(t, err)

	assert.Equal(t, "foo.yfoo.x", out.String())
	assert.Equal(t, map[string]string{"bar": "x"}, reg.Constraints())

	before, err := reg.Compiled()
	require.NoError(t, err)
	reg.WhereIn("bar")
	after, err := reg.Compiled()
	require.NoError(t, err)
	assert.Same(t, before, after, "empty WhereIn must not invalidate")
}

func TestDispatcher_RemoveAndSwap(t *testing.T) {
	d := New()
	var out strings.Builder

	a := d.Handle("foo", printer(&out, "a"))
	b := d.Handle("foo", printer(&out, "b"))
	assert.Equal(t, 2, d.Len())

	assert.True(t, d.Remove(a))
	assert.False(t, d.Remove(a))

	c := d.Prepare("foo", printer(&out, "c"), WithPriority(-1))
	e := d.Prepare("foo", printer(&out, "e"))
	d.Swap([]*Registration{b}, []*Registration{c, e})

	assert.Equal(t, []*Registration{e, c}, d.Registrations())

	_, err := d.Emit(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, "ec", out.String())
}

func TestDispatcher_HandleNamed(t *testing.T) {
	reg := NewRegistry()
	var out strings.Builder
	reg.MustRegister("print", printName(&out))

	d := New(WithRegistry(reg))
	r, err := d.HandleNamed("a.{b}", "print")
	require.NoError(t, err)
	assert.Equal(t, "print", r.HandlerName())

	_, err = d.HandleNamed("a.{b}", "missing")
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = d.Emit(context.Background(), "a.b")
	require.NoError(t, err)
	assert.Equal(t, "a.b", out.String())
}

type countingRecorder struct {
	names    []string
	handlers []int
	states   []State
}

func (r *countingRecorder) EventDispatched(name string, handlers int, state State) {
	r.names = append(r.names, name)
	r.handlers = append(r.handlers, handlers)
	r.states = append(r.states, state)
}

func TestDispatcher_Recorder(t *testing.T) {
	rec := &countingRecorder{}
	d := New(WithRecorder(rec))
	var out strings.Builder
	d.Handle("foo", printer(&out, "foo"))
	d.Handle("foo", cancelAndPrint(&out, "bar"))

	ctx := context.Background()
	_, err := d.Emit(ctx, "foo", Cancelable())
	require.NoError(t, err)
	_, err = d.Emit(ctx, "nothing")
	require.NoError(t, err)

	assert.Equal(t, []string{"foo", "nothing"}, rec.names)
	assert.Equal(t, []int{1, 0}, rec.handlers)
	assert.Equal(t, []State{StateCancelled, StateCompleted}, rec.states)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(99).String())
}
