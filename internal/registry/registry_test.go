package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAdapter is a configurable in-memory adapter for registry tests.
type mockAdapter struct {
	name        string
	initErr     error
	shutdownErr error
	execute     func(ctx context.Context, cmd Command) Result

	initialized bool
	shutdowns   int
}

func (m *mockAdapter) Name() string        { return m.name }
func (m *mockAdapter) Description() string { return "mock adapter" }

func (m *mockAdapter) Capabilities() []Capability {
	return []Capability{
		{Name: "echo", Description: "returns its arguments"},
	}
}

func (m *mockAdapter) Initialize(ctx context.Context) error {
	if m.initErr != nil {
		return m.initErr
	}
	m.initialized = true
	return nil
}

func (m *mockAdapter) Execute(ctx context.Context, cmd Command) Result {
	if m.execute != nil {
		return m.execute(ctx, cmd)
	}
	return Ok(cmd.Args)
}

func (m *mockAdapter) Shutdown(ctx context.Context) error {
	m.shutdowns++
	return m.shutdownErr
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration initializes the adapter", func(t *testing.T) {
		r := New()
		adapter := &mockAdapter{name: "fs"}

		err := r.Register(ctx, adapter)
		require.NoError(t, err)
		assert.True(t, adapter.initialized)

		infos := r.ListServices()
		require.Len(t, infos, 1)
		assert.Equal(t, "fs", infos[0].Name)
		assert.Equal(t, StatusRegistered, infos[0].Status)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(ctx, &mockAdapter{name: "fs"}))

		err := r.Register(ctx, &mockAdapter{name: "fs"})
		assert.Error(t, err)
		assert.Len(t, r.ListServices(), 1)
	})

	t.Run("failed initialize is all-or-nothing", func(t *testing.T) {
		r := New()
		adapter := &mockAdapter{name: "fs", initErr: errors.New("no base dir")}

		err := r.Register(ctx, adapter)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no base dir")
		assert.Empty(t, r.ListServices())
	})
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to the registered adapter and returns its result unchanged", func(t *testing.T) {
		r := New()
		want := Ok(map[string]any{"echoed": true})
		require.NoError(t, r.Register(ctx, &mockAdapter{
			name: "fs",
			execute: func(ctx context.Context, cmd Command) Result {
				return want
			},
		}))

		got := r.Execute(ctx, "fs", Command{Tool: "echo"})
		assert.Equal(t, want, got)
	})

	t.Run("unknown service returns a structured failure, never panics", func(t *testing.T) {
		r := New()

		result := r.Execute(ctx, "nope", Command{Tool: "echo"})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "unknown service: nope")
	})

	t.Run("adapter panic is contained", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(ctx, &mockAdapter{
			name: "bomb",
			execute: func(ctx context.Context, cmd Command) Result {
				panic("kaboom")
			},
		}))

		result := r.Execute(ctx, "bomb", Command{Tool: "echo"})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "kaboom")

		infos := r.ListServices()
		require.Len(t, infos, 1)
		assert.Equal(t, StatusFailed, infos[0].Status)
	})

	t.Run("successful execute marks the service active", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(ctx, &mockAdapter{name: "fs"}))

		result := r.Execute(ctx, "fs", Command{Tool: "echo", Args: map[string]any{"a": 1}})
		require.True(t, result.Success)

		infos := r.ListServices()
		assert.Equal(t, StatusActive, infos[0].Status)
	})
}

func TestGetCapabilities(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.Register(ctx, &mockAdapter{name: "fs"}))

	caps, err := r.GetCapabilities("fs")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "echo", caps[0].Name)

	_, err = r.GetCapabilities("nope")
	var unknown *UnknownServiceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Service)
}

func TestShutdownAll(t *testing.T) {
	ctx := context.Background()

	t.Run("continues past individual failures and aggregates them", func(t *testing.T) {
		r := New()
		bad := &mockAdapter{name: "bad", shutdownErr: errors.New("stuck")}
		good := &mockAdapter{name: "good"}
		require.NoError(t, r.Register(ctx, bad))
		require.NoError(t, r.Register(ctx, good))

		err := r.ShutdownAll(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stuck")
		assert.Equal(t, 1, bad.shutdowns)
		assert.Equal(t, 1, good.shutdowns)
		assert.Empty(t, r.ListServices())
	})

	t.Run("empty registry shuts down cleanly", func(t *testing.T) {
		r := New()
		assert.NoError(t, r.ShutdownAll(ctx))
	})
}

func TestListServicesOrder(t *testing.T) {
	ctx := context.Background()
	r := New()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(ctx, &mockAdapter{name: name}))
	}

	infos := r.ListServices()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}
