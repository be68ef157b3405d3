package colibri

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/colibri/events"
	"github.com/GoCodeAlone/colibri/routing"
)

var errBoom = errors.New("boom")

// journal records lifecycle calls across modules.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type testModule struct {
	name     string
	deps     []string
	j        *journal
	initErr  error
	startErr error
	stopErr  error
	onEvents func(*events.Dispatcher) error
	onRoutes func(*routing.Router) error
}

func (m *testModule) Name() string           { return m.name }
func (m *testModule) Dependencies() []string { return m.deps }

func (m *testModule) Init(app *Application) error {
	m.j.add("init:" + m.name)
	return m.initErr
}

func (m *testModule) RegisterEvents(d *events.Dispatcher) error {
	if m.onEvents != nil {
		return m.onEvents(d)
	}
	return nil
}

func (m *testModule) RegisterRoutes(r *routing.Router) error {
	if m.onRoutes != nil {
		return m.onRoutes(r)
	}
	return nil
}

func (m *testModule) Start(ctx context.Context) error {
	m.j.add("start:" + m.name)
	return m.startErr
}

func (m *testModule) Stop(ctx context.Context) error {
	m.j.add("stop:" + m.name)
	return m.stopErr
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	return New(nil, nil)
}

func TestApplication_DependencyOrder(t *testing.T) {
	j := &journal{}
	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(&testModule{name: "web", deps: []string{"db", "cache"}, j: j}))
	require.NoError(t, app.RegisterModule(&testModule{name: "cache", deps: []string{"db"}, j: j}))
	require.NoError(t, app.RegisterModule(&testModule{name: "db", j: j}))

	require.NoError(t, app.Init())
	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Stop(context.Background()))

	assert.Equal(t, []string{
		"init:db", "init:cache", "init:web",
		"start:db", "start:cache", "start:web",
		"stop:web", "stop:cache", "stop:db",
	}, j.list())
}

func TestApplication_RegisterModule(t *testing.T) {
	app := newTestApp(t)
	assert.ErrorIs(t, app.RegisterModule(nil), ErrModuleNil)

	m := &testModule{name: "a", j: &journal{}}
	require.NoError(t, app.RegisterModule(m))
	assert.ErrorIs(t, app.RegisterModule(&testModule{name: "a"}), ErrModuleAlreadyRegistered)

	got, ok := app.Module("a")
	assert.True(t, ok)
	assert.Same(t, m, got)
}

func TestApplication_DependencyErrors(t *testing.T) {
	t.Run("circular", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RegisterModule(&testModule{name: "a", deps: []string{"b"}, j: &journal{}}))
		require.NoError(t, app.RegisterModule(&testModule{name: "b", deps: []string{"a"}, j: &journal{}}))
		err := app.Init()
		assert.ErrorIs(t, err, ErrCircularDependency)
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("missing", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RegisterModule(&testModule{name: "a", deps: []string{"nope"}, j: &journal{}}))
		assert.ErrorIs(t, app.Init(), ErrModuleDependencyMissing)
	})

	t.Run("init failure", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RegisterModule(&testModule{name: "a", initErr: errBoom, j: &journal{}}))
		err := app.Init()
		assert.ErrorIs(t, err, ErrModuleInitFailed)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestApplication_StartRequiresInit(t *testing.T) {
	app := newTestApp(t)
	assert.ErrorIs(t, app.Start(context.Background()), ErrApplicationNotInitialized)
}

func TestApplication_StartFailureStopsStartedModules(t *testing.T) {
	j := &journal{}
	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(&testModule{name: "a", j: j}))
	require.NoError(t, app.RegisterModule(&testModule{name: "b", deps: []string{"a"}, startErr: errBoom, j: j}))
	require.NoError(t, app.Init())

	err := app.Start(context.Background())
	assert.ErrorIs(t, err, ErrModuleStartFailed)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"init:a", "init:b", "start:a", "start:b", "stop:a"}, j.list())
}

func TestApplication_StopJoinsErrors(t *testing.T) {
	j := &journal{}
	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(&testModule{name: "a", stopErr: errBoom, j: j}))
	require.NoError(t, app.RegisterModule(&testModule{name: "b", j: j}))
	require.NoError(t, app.Init())
	require.NoError(t, app.Start(context.Background()))

	err := app.Stop(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, j.list(), "stop:b")
}

func TestApplication_LifecycleEvents(t *testing.T) {
	app := newTestApp(t)
	var seen []string
	app.Events().Handle("app.{=.+}", events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		seen = append(seen, ev.Name())
		return nil
	}))
	var module string
	app.Events().Handle(EventModuleInitialized, events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		module = ev.Param("module")
		return nil
	}))

	require.NoError(t, app.RegisterModule(&testModule{name: "db", j: &journal{}}))
	require.NoError(t, app.Init())
	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Stop(context.Background()))

	assert.Equal(t, []string{
		"app.module.db.initialized",
		"app.initialized",
		"app.started",
		"app.stopping",
		"app.stopped",
	}, seen)
	assert.Equal(t, "db", module)
}

func TestApplication_StopCanBeCancelled(t *testing.T) {
	j := &journal{}
	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(&testModule{name: "a", j: j}))
	require.NoError(t, app.Init())
	require.NoError(t, app.Start(context.Background()))

	veto := app.Events().Handle(EventAppStopping, events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		ev.Cancel()
		return nil
	}))
	assert.ErrorIs(t, app.Stop(context.Background()), ErrStopCancelled)
	assert.NotContains(t, j.list(), "stop:a")

	app.Events().Remove(veto)
	require.NoError(t, app.Stop(context.Background()))
	assert.Contains(t, j.list(), "stop:a")
}

func TestApplication_ModulesRegisterEventsAndRoutes(t *testing.T) {
	var got string
	m := &testModule{
		name: "shop",
		j:    &journal{},
		onEvents: func(d *events.Dispatcher) error {
			d.Handle("order.{id}.placed", events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
				got = ev.Param("id")
				return nil
			}))
			return nil
		},
		onRoutes: func(r *routing.Router) error {
			r.Get("/orders/{id}", routing.Fn(func(app *Application, id int) string {
				_, ok := app.Module("shop")
				return fmt.Sprintf("order %d %t", id, ok)
			}, "app", "id"))
			return nil
		},
	}

	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(m))
	require.NoError(t, app.Init())

	_, err := app.Events().Emit(context.Background(), "order.9.placed")
	require.NoError(t, err)
	assert.Equal(t, "9", got)

	res, err := app.Router().Dispatch(context.Background(), routing.NewRequest(http.MethodGet, "/orders/3"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "order 3 true", res.String())
}

func TestApplication_RegisterEventsFailure(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.RegisterModule(&testModule{
		name:     "a",
		j:        &journal{},
		onEvents: func(*events.Dispatcher) error { return errBoom },
	}))
	assert.ErrorIs(t, app.Init(), errBoom)
}

func TestApplication_CustomSeparator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.Separator = ":"
	app := New(cfg, nil)

	var seen []string
	app.Events().Handle("app:{=.+}", events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		seen = append(seen, ev.Name())
		return nil
	}))
	require.NoError(t, app.Init())
	assert.Equal(t, []string{"app:initialized"}, seen)
}

func TestApplication_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.Separator = "::"
	app := New(cfg, nil)
	err := app.Init()
	assert.ErrorIs(t, err, ErrConfigValidationFailed)
	assert.ErrorIs(t, err, ErrInvalidSeparator)
}
