package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name       string
	dependsOn  []string
	failStarts int
	startCalls int
	events     *[]string
}

func (f *fakeDependency) GetName() string     { return f.name }
func (f *fakeDependency) DependsOn() []string { return f.dependsOn }

func (f *fakeDependency) Start(_ context.Context) error {
	f.startCalls++
	if f.startCalls <= f.failStarts {
		return errors.New("not yet")
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeDependency) Stop(_ context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStartHonorsDependsOn(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 1)

	s.AddDependency(&fakeDependency{name: "http", dependsOn: []string{"database", "kafka"}, events: &events})
	s.AddDependency(&fakeDependency{name: "database", events: &events})
	s.AddDependency(&fakeDependency{name: "kafka", dependsOn: []string{"database"}, events: &events})

	err := s.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"start:database", "start:kafka", "start:http"}, events)
}

func TestStartRetriesWithoutRestartingStarted(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 3)

	db := &fakeDependency{name: "database", events: &events}
	flaky := &fakeDependency{name: "kafka", failStarts: 1, events: &events}
	s.AddDependency(db)
	s.AddDependency(flaky)

	err := s.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, db.startCalls)
	assert.Equal(t, 2, flaky.startCalls)
	assert.Equal(t, []string{"start:database", "start:kafka"}, events)
}

func TestStartFailsAfterMaxAttempts(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 2)
	s.AddDependency(&fakeDependency{name: "database", failStarts: 10, events: &events})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
}

func TestStartFailsOnUnregisteredDependency(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 1)
	s.AddDependency(&fakeDependency{name: "http", dependsOn: []string{"database"}, events: &events})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered")
}

func TestStopReversesRegistrationOrder(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 1)

	s.AddDependency(&fakeDependency{name: "database", events: &events})
	s.AddDependency(&fakeDependency{name: "kafka", events: &events})
	s.AddDependency(&fakeDependency{name: "http", events: &events})

	require.NoError(t, s.Start(context.Background()))

	events = events[:0]
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, []string{"stop:http", "stop:kafka", "stop:database"}, events)
}

func TestStopSkipsNeverStarted(t *testing.T) {
	var events []string
	s := NewStartup(testLogger(), 1)
	s.AddDependency(&fakeDependency{name: "database", events: &events})

	require.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, events)
}
