package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func recorder(log *[]string, name string, requires ...string) Dependency {
	return Dependency{
		Name:     name,
		Requires: requires,
		OnStart: func(context.Context) error {
			*log = append(*log, "start "+name)
			return nil
		},
		OnStop: func(context.Context) error {
			*log = append(*log, "stop "+name)
			return nil
		},
	}
}

func TestStartup_DependencyOrder(t *testing.T) {
	var log []string
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(recorder(&log, "api", "database", "redis"))
	s.AddDependency(recorder(&log, "database"))
	s.AddDependency(recorder(&log, "redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start api"}, log)
	assert.Equal(t, StartupStatusStarted, s.Status("api"))

	log = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "stop api", log[0], "dependents stop first")
	assert.Len(t, log, 3)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	s := NewStartup(silentLogger(), 3)
	s.unit = time.Millisecond
	s.AddDependency(Dependency{
		Name: "kafka",
		OnStart: func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("broker not ready")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(silentLogger(), 2)
	s.unit = time.Millisecond
	s.AddDependency(Dependency{Name: "graph", OnStart: func(context.Context) error { return errors.New("down") }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("graph"))
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(Dependency{Name: "api", Requires: []string{"missing"}})
	assert.Error(t, s.Start(context.Background()))

	s = NewStartup(silentLogger(), 1)
	s.AddDependency(Dependency{Name: "a", Requires: []string{"b"}})
	s.AddDependency(Dependency{Name: "b", Requires: []string{"a"}})
	assert.Error(t, s.Start(context.Background()))
}
