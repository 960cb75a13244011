package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/visaflow/pkg/config"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/persistence/file"
	"github.com/dukex/visaflow/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingRunner struct {
	mu       sync.Mutex
	pairs    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	called   chan struct{}
}

func (r *recordingRunner) Scrape(ctx context.Context, visaTypeCode, countryCode string) (*services.ScrapeResult, error) {
	current := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	for {
		peak := r.peak.Load()
		if current <= peak || r.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	time.Sleep(r.delay)

	r.mu.Lock()
	r.pairs = append(r.pairs, visaTypeCode+"/"+countryCode)
	r.mu.Unlock()

	if r.called != nil {
		select {
		case r.called <- struct{}{}:
		default:
		}
	}

	switch countryCode {
	case "FR":
		return &services.ScrapeResult{Success: false}, errors.New("sources exhausted")
	case "DE":
		return &services.ScrapeResult{Success: true, IsDuplicate: true}, nil
	default:
		return &services.ScrapeResult{Success: true}, nil
	}
}

func newStore(t *testing.T) *file.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	refs := store.ReferenceRepository()

	require.NoError(t, refs.SaveVisaType(t.Context(), &models.VisaType{ID: 1, Code: "B2", IsActive: true}))
	require.NoError(t, refs.SaveVisaType(t.Context(), &models.VisaType{ID: 2, Code: "H1B", IsActive: true}))
	require.NoError(t, refs.SaveVisaType(t.Context(), &models.VisaType{ID: 3, Code: "J1", IsActive: false}))

	return store
}

func TestDriver_RunCycle(t *testing.T) {
	store := newStore(t)
	runner := &recordingRunner{delay: 10 * time.Millisecond}

	cfg := config.Default()
	cfg.Countries = []string{"ES", "FR", "DE", "IT", "AD"}

	driver, err := NewDriver(runner, store.ReferenceRepository(), cfg, testLogger())
	require.NoError(t, err)

	report := driver.RunCycle(t.Context())

	assert.Equal(t, 10, report.Runs)
	assert.Equal(t, 2, report.Failures)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 6, report.Drafts)
	assert.LessOrEqual(t, runner.peak.Load(), int32(3))
	assert.Len(t, runner.pairs, 10)
	assert.NotContains(t, runner.pairs, "J1/ES")
}

func TestDriver_ConfiguredVisaTypes(t *testing.T) {
	store := newStore(t)
	runner := &recordingRunner{}

	cfg := config.Default()
	cfg.VisaTypes = []string{"F1"}
	cfg.Countries = []string{"ES"}
	cfg.MaxConcurrency = 1

	driver, err := NewDriver(runner, store.ReferenceRepository(), cfg, testLogger())
	require.NoError(t, err)

	report := driver.RunCycle(t.Context())

	assert.Equal(t, 1, report.Runs)
	assert.Equal(t, []string{"F1/ES"}, runner.pairs)
}

func TestDriver_CancelledCycleSchedulesNothing(t *testing.T) {
	store := newStore(t)
	runner := &recordingRunner{}

	driver, err := NewDriver(runner, store.ReferenceRepository(), config.Default(), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	report := driver.RunCycle(ctx)
	assert.Zero(t, report.Runs)
}

func TestDriver_StartRunsOnStart(t *testing.T) {
	store := newStore(t)
	runner := &recordingRunner{called: make(chan struct{}, 1)}

	cfg := config.Default()
	cfg.Schedule = "@every 1h"
	cfg.Countries = []string{"ES"}

	driver, err := NewDriver(runner, store.ReferenceRepository(), cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, driver.Start(t.Context()))

	select {
	case <-runner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("startup cycle did not run")
	}

	stopCtx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	driver.Stop(stopCtx)

	runner.mu.Lock()
	defer runner.mu.Unlock()

	assert.ElementsMatch(t, []string{"B2/ES", "H1B/ES"}, runner.pairs)
}

func TestNewDriver_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule = "not a schedule"

	_, err := NewDriver(&recordingRunner{}, nil, cfg, testLogger())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
