package metrics

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetLifecycle ensures each lifecycle test starts from a clean module-level
// state regardless of ordering or a prior test's failure.
func resetLifecycle() {
	Terminate()
}

func TestInitializeThenGetReturnsSameRegistry(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	r, err := Initialize(NewConfig(WithCollectionInterval(0)))
	require.NoError(t, err)

	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestInitializeTwiceFails(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	_, err := Initialize(DefaultConfig())
	require.NoError(t, err)

	_, err = Initialize(DefaultConfig())
	assert.ErrorIs(t, err, ErrAlreadyInitialised)
}

func TestGetBeforeInitializeFails(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	_, err := Get()
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestTerminateIsIdempotentAndClearsAccessor(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	_, err := Initialize(DefaultConfig())
	require.NoError(t, err)

	Terminate()
	Terminate() // idempotent, must not panic

	_, err = Get()
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestInitializeStartsCollectionWhenEnabled(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	r, err := Initialize(NewConfig(WithCollectionInterval(0)))
	require.NoError(t, err)
	assert.True(t, r.IsCollecting())
}

func TestInitializeDoesNotStartCollectionWhenDisabled(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	cfg := DefaultConfig()
	cfg.Enabled = false
	r, err := Initialize(cfg)
	require.NoError(t, err)
	assert.False(t, r.IsCollecting())
}

func TestRegisterIsNoOpWhenDisabled(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	cfg := DefaultConfig()
	cfg.Enabled = false
	_, err := Initialize(cfg)
	require.NoError(t, err)

	called := false
	err = Register(func(mw func(http.Handler) http.Handler) { called = true }, InterceptorOptions{})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRegisterInstallsInterceptorWhenEnabled(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	_, err := Initialize(NewConfig(WithCollectionInterval(0)))
	require.NoError(t, err)

	var installed func(http.Handler) http.Handler
	err = Register(func(mw func(http.Handler) http.Handler) { installed = mw }, InterceptorOptions{})
	require.NoError(t, err)
	assert.NotNil(t, installed)
}

func TestRegisterFailsWhenNotInitialized(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	err := Register(func(func(http.Handler) http.Handler) {}, InterceptorOptions{})
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestOnServerStartAndStopLifecycle(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	r, err := Initialize(NewConfig(WithCollectionInterval(0)))
	require.NoError(t, err)
	r.StopCollection() // simulate a host that defers startup to OnServerStart

	require.NoError(t, OnServerStart())
	assert.True(t, r.IsCollecting())

	require.NoError(t, OnServerStop())
	assert.False(t, r.IsCollecting())
}

func TestOnServerStopRunsReporterOneFinalTime(t *testing.T) {
	resetLifecycle()
	defer resetLifecycle()

	var called bool
	_, err := Initialize(NewConfig(
		WithCollectionInterval(0),
		WithReporter(func(Snapshot) error { called = true; return nil }),
	))
	require.NoError(t, err)

	require.NoError(t, OnServerStop())
	assert.True(t, called)
}
