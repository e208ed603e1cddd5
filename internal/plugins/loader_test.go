package plugins_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/atlanticdynamic/scriptgate/internal/consent"
	"github.com/atlanticdynamic/scriptgate/internal/dimensions"
	"github.com/atlanticdynamic/scriptgate/internal/events"
	"github.com/atlanticdynamic/scriptgate/internal/experiments"
	"github.com/atlanticdynamic/scriptgate/internal/plugins"
	"github.com/atlanticdynamic/scriptgate/internal/plugins/finitestate"
	"github.com/atlanticdynamic/scriptgate/internal/targeting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// succeedExecutor reports success synchronously.
func succeedExecutor() plugins.Executor {
	return plugins.ExecutorFunc(func(_ context.Context, _ *plugins.Descriptor, done func(error)) {
		done(nil)
	})
}

// failExecutor reports the given error synchronously.
func failExecutor(err error) plugins.Executor {
	return plugins.ExecutorFunc(func(_ context.Context, _ *plugins.Descriptor, done func(error)) {
		done(err)
	})
}

// stallExecutor never reports; the captured done callback can be fired later.
type stallExecutor struct {
	mu   sync.Mutex
	done func(error)
}

func (s *stallExecutor) Execute(_ context.Context, _ *plugins.Descriptor, done func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = done
}

func (s *stallExecutor) fire(err error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		done(err)
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeRecorder) ObserveLoad(plugin, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, plugin+":"+status)
}

func (f *fakeRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.entries...)
}

// recordEvents subscribes to every lifecycle topic for a plugin and records
// event names in publish order.
func recordEvents(bus *events.Bus, prefix, plugin string) func() []string {
	var mu sync.Mutex
	var got []string
	for _, event := range []string{
		plugins.EventLoad, plugins.EventError, plugins.EventTimeout,
		plugins.EventIgnore, plugins.EventInactive,
		plugins.EventOverrideEnabled, plugins.EventOverrideDisabled,
		plugins.EventConsentPending, plugins.EventComplete,
	} {
		event := event
		bus.Subscribe(events.Subscription{
			Topic: prefix + "." + plugin + "." + event,
			Func: func(events.Message) {
				mu.Lock()
				got = append(got, event)
				mu.Unlock()
			},
		})
	}
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
}

func mustResult(t *testing.T, op *plugins.Operation) plugins.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := op.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestLoader_New_RequiresExecutor(t *testing.T) {
	t.Parallel()

	_, err := plugins.New()
	assert.ErrorIs(t, err, plugins.ErrNoExecutor)
}

func TestLoader_Load_Validation(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), nil)
	assert.ErrorIs(t, err, plugins.ErrNilDescriptor)

	_, err = l.Load(context.Background(), &plugins.Descriptor{})
	assert.ErrorIs(t, err, plugins.ErrMissingName)
}

func TestLoader_Load_Success(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	rec := &fakeRecorder{}
	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithEventBus(bus),
		plugins.WithMetrics(rec),
	)
	require.NoError(t, err)

	eventsOf := recordEvents(bus, plugins.DefaultEventPrefix, "analytics")

	var loaded bool
	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "analytics",
		URL:    "https://cdn.example.com/a.js",
		Active: true,
		Hooks:  plugins.Hooks{OnLoad: func(*plugins.Descriptor) { loaded = true }},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusLoaded, res.Status)
	assert.Equal(t, "analytics", res.Name)
	assert.NoError(t, res.Err)
	assert.True(t, loaded)
	assert.False(t, res.Performance.Init.IsZero())
	assert.False(t, res.Performance.Requested.IsZero())
	assert.False(t, res.Performance.Received.IsZero())
	assert.Equal(t, finitestate.StatusLoaded, res.Performance.Status)
	assert.Equal(t, []string{plugins.EventLoad, plugins.EventComplete}, eventsOf())
	assert.Equal(t, []string{"analytics:loaded"}, rec.all())
}

func TestLoader_Load_Inactive(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithEventBus(bus),
	)
	require.NoError(t, err)

	eventsOf := recordEvents(bus, plugins.DefaultEventPrefix, "dormant")

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name: "dormant",
		URL:  "https://x/y.js",
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusInactive, res.Status)
	assert.Equal(t, []string{plugins.EventInactive, plugins.EventComplete}, eventsOf())
}

func TestLoader_Load_TargetingIgnore(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)
	l.Dimensions().RegisterValue("section", "news")

	var ignoredReason string
	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "a",
		URL:     "https://x/y.js",
		Active:  true,
		Include: targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
		Hooks: plugins.Hooks{OnIgnore: func(_ *plugins.Descriptor, reason string) {
			ignoredReason = reason
		}},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusIgnore, res.Status)
	assert.Equal(t, "Not included by section: news", res.Reason)
	assert.Equal(t, res.Reason, ignoredReason)

	// The ignore deactivated the plugin, so a fresh load goes inactive.
	d, ok := l.Descriptor("a")
	require.True(t, ok)
	assert.False(t, d.Active)

	op2, err := l.Load(context.Background(), &plugins.Descriptor{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, finitestate.StatusInactive, mustResult(t, op2).Status)
}

func TestLoader_Load_StartsWithMatchProceeds(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithTargeting(targeting.NewEngine(
			targeting.WithMatchTypes(targeting.MatchTypes{"section": targeting.MatchStartsWith}),
		)),
	)
	require.NoError(t, err)
	l.Dimensions().RegisterValue("section", "sport.football")

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "a",
		URL:     "https://x/y.js",
		Active:  true,
		Include: targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op).Status)
}

func TestLoader_Load_DomainGate(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithHost("example.com"),
	)
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "a",
		URL:     "https://x/y.js",
		Active:  true,
		Domains: []string{"other.com"},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusIgnore, res.Status)
	assert.Equal(t, plugins.ReasonDomainMismatch, res.Reason)

	op2, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "b",
		URL:     "https://x/y.js",
		Active:  true,
		Domains: []string{"example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op2).Status)
}

func TestLoader_Load_MissingURL(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{Name: "a", Active: true})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusIgnore, res.Status)
	assert.Equal(t, plugins.ReasonMissingURL, res.Reason)
}

func TestLoader_Load_Error(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("network unreachable")
	var hookErr error
	l, err := plugins.New(plugins.WithExecutor(failExecutor(loadErr)))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/y.js",
		Active: true,
		Hooks: plugins.Hooks{OnError: func(_ *plugins.Descriptor, err error) {
			hookErr = err
		}},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, loadErr)
	assert.ErrorIs(t, hookErr, loadErr)
	assert.False(t, res.Performance.Error.IsZero())
}

func TestLoader_Load_Timeout(t *testing.T) {
	t.Parallel()

	stall := &stallExecutor{}
	var timedOut bool
	l, err := plugins.New(plugins.WithExecutor(stall))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "slow",
		URL:     "https://x/y.js",
		Active:  true,
		Timeout: 20 * time.Millisecond,
		Hooks:   plugins.Hooks{OnTimeout: func(*plugins.Descriptor) { timedOut = true }},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusTimeout, res.Status)
	assert.True(t, timedOut)

	// A late executor report after the timeout resolved must be a no-op.
	stall.fire(nil)
	d, ok := l.Descriptor("slow")
	require.True(t, ok)
	assert.Equal(t, finitestate.StatusTimeout, d.Status())
	got, settled := op.Result()
	require.True(t, settled)
	assert.Equal(t, finitestate.StatusTimeout, got.Status)
}

func TestLoader_PerformanceReportDuringTimeout(t *testing.T) {
	t.Parallel()

	stall := &stallExecutor{}
	l, err := plugins.New(plugins.WithExecutor(stall))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "slow",
		URL:     "https://x/y.js",
		Active:  true,
		Timeout: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	// Read the report continuously while the timeout alarm settles the load
	// from its own goroutine.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				l.PerformanceReport()
			}
		}
	}()

	res := mustResult(t, op)
	close(stop)
	wg.Wait()

	assert.Equal(t, finitestate.StatusTimeout, res.Status)
	report := l.PerformanceReport()
	require.Contains(t, report, "slow")
	assert.False(t, report["slow"].Timeout.IsZero())
	assert.Equal(t, finitestate.StatusTimeout, report["slow"].Status)
}

func TestLoader_Load_DoubleCallbackIsNoop(t *testing.T) {
	t.Parallel()

	hookCalls := 0
	exec := plugins.ExecutorFunc(func(_ context.Context, _ *plugins.Descriptor, done func(error)) {
		done(nil)
		done(errors.New("late duplicate"))
	})
	l, err := plugins.New(plugins.WithExecutor(exec))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/y.js",
		Active: true,
		Hooks:  plugins.Hooks{OnLoad: func(*plugins.Descriptor) { hookCalls++ }},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusLoaded, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, hookCalls)
}

func TestLoader_Overrides(t *testing.T) {
	t.Parallel()

	t.Run("disable all except enabled bypasses targeting", func(t *testing.T) {
		t.Parallel()
		overrides, err := plugins.ParseOverrides("disable=all&enable=a")
		require.NoError(t, err)

		bus := events.NewBus()
		l, err := plugins.New(
			plugins.WithExecutor(succeedExecutor()),
			plugins.WithEventBus(bus),
			plugins.WithOverrides(overrides),
			plugins.WithHost("example.com"),
		)
		require.NoError(t, err)
		l.Dimensions().RegisterValue("section", "news")

		// Context would exclude this plugin, but the override bypasses it.
		op, err := l.Load(context.Background(), &plugins.Descriptor{
			Name:    "a",
			URL:     "https://x/y.js",
			Active:  true,
			Domains: []string{"other.com"},
			Include: targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op).Status)
		assert.True(t, bus.HasPublished("plugins.a.override.enabled"))

		// Unlisted plugins are force-disabled.
		op2, err := l.Load(context.Background(), &plugins.Descriptor{
			Name:   "b",
			URL:    "https://x/y.js",
			Active: true,
		})
		require.NoError(t, err)
		assert.Equal(t, finitestate.StatusInactive, mustResult(t, op2).Status)
		assert.True(t, bus.HasPublished("plugins.b.override.disabled"))
	})

	t.Run("explicit disable", func(t *testing.T) {
		t.Parallel()
		overrides, err := plugins.ParseOverrides("disable=a")
		require.NoError(t, err)

		l, err := plugins.New(
			plugins.WithExecutor(succeedExecutor()),
			plugins.WithOverrides(overrides),
		)
		require.NoError(t, err)

		op, err := l.Load(context.Background(), &plugins.Descriptor{
			Name:   "a",
			URL:    "https://x/y.js",
			Active: true,
		})
		require.NoError(t, err)
		assert.Equal(t, finitestate.StatusInactive, mustResult(t, op).Status)
	})
}

func TestLoader_ConsentQueue(t *testing.T) {
	t.Parallel()

	ledger := consent.NewLedger()
	bus := events.NewBus()
	requested := false
	exec := plugins.ExecutorFunc(func(_ context.Context, _ *plugins.Descriptor, done func(error)) {
		requested = true
		done(nil)
	})
	l, err := plugins.New(
		plugins.WithExecutor(exec),
		plugins.WithEventBus(bus),
		plugins.WithConsentOracle(ledger),
	)
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:          "tracker",
		URL:           "https://x/t.js",
		Active:        true,
		ConsentStates: []string{"analytics"},
	})
	require.NoError(t, err)

	assert.False(t, op.Resolved())
	assert.False(t, requested, "a denied plugin must never reach requested")
	assert.True(t, bus.HasPublished("plugins.tracker.consent.pending"))
	assert.Equal(t, []string{"tracker"}, l.QueuedConsent())

	// Still denied: processing re-queues the entry.
	l.ProcessConsentQueue(context.Background())
	assert.False(t, op.Resolved())
	assert.Equal(t, []string{"tracker"}, l.QueuedConsent())

	// Re-submitting while parked is rejected.
	_, err = l.Load(context.Background(), &plugins.Descriptor{Name: "tracker"})
	assert.ErrorIs(t, err, plugins.ErrLoadInFlight)

	ledger.Grant("analytics")
	l.ProcessConsentQueue(context.Background())

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusLoaded, res.Status)
	assert.True(t, requested)
	assert.Empty(t, l.QueuedConsent())
}

func TestLoader_ConsentQueue_ReevaluatesGates(t *testing.T) {
	t.Parallel()

	ledger := consent.NewLedger()
	dims := dimensions.NewRegistry()
	section := "sport"
	dims.Register("section", func() (any, error) { return section, nil })

	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithConsentOracle(ledger),
		plugins.WithDimensions(dims),
	)
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:          "sporty",
		URL:           "https://x/s.js",
		Active:        true,
		ConsentStates: []string{"analytics"},
		Include:       targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
	})
	require.NoError(t, err)
	require.False(t, op.Resolved())

	// Context changed while parked; the released load must re-run targeting.
	section = "news"
	ledger.Grant("analytics")
	l.ProcessConsentQueue(context.Background())

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusIgnore, res.Status)
	assert.Equal(t, "Not included by section: news", res.Reason)
}

func TestLoader_ConsentWildcardSkipsOracle(t *testing.T) {
	t.Parallel()

	denyAll := consent.OracleFunc(func([]string) bool { return false })
	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithConsentOracle(denyAll),
	)
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:          "open",
		URL:           "https://x/o.js",
		Active:        true,
		ConsentStates: []string{"all"},
	})
	require.NoError(t, err)
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op).Status)
}

func TestLoader_ExperimentsMutateBeforeTargeting(t *testing.T) {
	t.Parallel()

	mgr := experiments.NewManager(experiments.WithTestgroup(5))
	mgr.Register(experiments.Experiment{
		ID:        "loosen-targeting",
		Active:    true,
		TestRange: experiments.Range{Min: 0, Max: 9},
		Plugin:    "a",
		Apply: func(d *plugins.Descriptor) error {
			d.Include = targeting.RuleSet{}
			return nil
		},
	})

	l, err := plugins.New(
		plugins.WithExecutor(succeedExecutor()),
		plugins.WithExperiments(mgr),
	)
	require.NoError(t, err)
	l.Dimensions().RegisterValue("section", "news")

	// Without the experiment this include rule would ignore the plugin.
	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "a",
		URL:     "https://x/y.js",
		Active:  true,
		Include: targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op).Status)
	assert.Equal(t, []string{"loosen-targeting_a"}, mgr.GetTargetingIds())
}

func TestLoader_DescriptorReuse(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/v1.js",
		Active: true,
	})
	require.NoError(t, err)
	mustResult(t, op)

	first, ok := l.Descriptor("a")
	require.True(t, ok)

	op2, err := l.Load(context.Background(), &plugins.Descriptor{
		Name: "a",
		URL:  "https://x/v2.js",
	})
	require.NoError(t, err)
	mustResult(t, op2)

	second, ok := l.Descriptor("a")
	require.True(t, ok)
	assert.Same(t, first, second, "one descriptor instance per name")
	assert.Equal(t, "https://x/v2.js", second.URL)
}

func TestLoader_Reset(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)
	l.Dimensions().RegisterValue("section", "news")

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:    "a",
		URL:     "https://x/y.js",
		Active:  true,
		Include: targeting.RuleSet{Dimensions: map[string][]string{"section": {"sport"}}},
	})
	require.NoError(t, err)
	require.Equal(t, finitestate.StatusIgnore, mustResult(t, op).Status)

	// After a reset the descriptor starts fresh and can load again.
	l.Reset("a")
	op2, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/y.js",
		Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, op2).Status)
}

func TestLoader_HookPanicsAreContained(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/y.js",
		Active: true,
		Hooks: plugins.Hooks{
			Preload: func(*plugins.Descriptor) { panic("preload boom") },
			OnLoad:  func(*plugins.Descriptor) { panic("onload boom") },
		},
	})
	require.NoError(t, err)

	res := mustResult(t, op)
	assert.Equal(t, finitestate.StatusLoaded, res.Status)
}

func TestLoader_PerformanceReport(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name:   "a",
		URL:    "https://x/y.js",
		Active: true,
	})
	require.NoError(t, err)
	mustResult(t, op)

	report := l.PerformanceReport()
	require.Contains(t, report, "a")
	assert.Equal(t, finitestate.StatusLoaded, report["a"].Status)
	assert.GreaterOrEqual(t, report["a"].Latency, time.Duration(0))
}

func TestLoader_IndependentPluginsShareNothing(t *testing.T) {
	t.Parallel()

	stall := &stallExecutor{}
	l, err := plugins.New(plugins.WithExecutor(plugins.ExecutorFunc(
		func(ctx context.Context, d *plugins.Descriptor, done func(error)) {
			if d.Name == "slow" {
				stall.Execute(ctx, d, done)
				return
			}
			done(nil)
		},
	)))
	require.NoError(t, err)

	slowOp, err := l.Load(context.Background(), &plugins.Descriptor{
		Name: "slow", URL: "https://x/s.js", Active: true, Timeout: time.Minute,
	})
	require.NoError(t, err)

	fastOp, err := l.Load(context.Background(), &plugins.Descriptor{
		Name: "fast", URL: "https://x/f.js", Active: true,
	})
	require.NoError(t, err)

	// The fast plugin settles while the slow one is still in flight.
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, fastOp).Status)
	assert.False(t, slowOp.Resolved())

	stall.fire(nil)
	assert.Equal(t, finitestate.StatusLoaded, mustResult(t, slowOp).Status)
}

func TestOperation_PlaybackLogs(t *testing.T) {
	t.Parallel()

	l, err := plugins.New(plugins.WithExecutor(succeedExecutor()))
	require.NoError(t, err)

	op, err := l.Load(context.Background(), &plugins.Descriptor{
		Name: "a", URL: "https://x/y.js", Active: true,
	})
	require.NoError(t, err)
	mustResult(t, op)

	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	require.NoError(t, op.PlaybackLogs(handler))
	assert.Contains(t, buf.String(), "load submitted")
	assert.Contains(t, buf.String(), "script loaded")
}
