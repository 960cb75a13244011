package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukex/visaflow/pkg/cmd"
	"github.com/dukex/visaflow/pkg/events"
	"github.com/dukex/visaflow/pkg/mocks"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/otelhelper"
	"github.com/dukex/visaflow/pkg/persistence/file"
	"github.com/dukex/visaflow/pkg/services"
	"github.com/dukex/visaflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards log output written from the subscriber goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAPI(t *testing.T) *API {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	require.NoError(t, store.ReferenceRepository().SaveVisaType(t.Context(), &models.VisaType{ID: 1, Code: "B2", IsActive: true}))
	require.NoError(t, store.ReferenceRepository().SaveReviewer(t.Context(), &models.Reviewer{ID: "admin-1"}))

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return NewAPI(testLogger(), store, bus, cmd.NewFetcher(testLogger(), cmd.FetcherOptions{Timeout: time.Second}),
		otelhelper.NewNoopTracer("visaflow-api-test"))
}

func TestAPI_App(t *testing.T) {
	t.Parallel()

	app := newTestAPI(t).App()

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/livez", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/admin/workflows/pending", "", http.StatusOK},
		{http.MethodPost, "/scrape", `{"visaType":"B2","country":"ES"}`, http.StatusOK},
		{http.MethodGet, "/workflows/latest", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}

			req := httptest.NewRequest(tt.method, tt.path, body)
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPI_ScrapePublishesDraftEvent(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	app := api.App()

	payload, err := json.Marshal(web.ScrapeRequest{VisaType: "B2", Country: "ES"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/scrape", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var result services.ScrapeResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)

	bus, ok := api.eventBus.(*mocks.MockEventBus)
	require.True(t, ok)
	bus.AssertCalled(t, "Publish", mock.Anything, "1/ES", mock.AnythingOfType("events.DraftCreated"))
}

func TestRegisterAuditHandlers(t *testing.T) {
	t.Parallel()

	output := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo}))

	bus := cmd.NewEventBus("gochannel", "visaflow-api-test", testLogger())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, registerAuditHandlers(ctx, bus, logger))

	require.NoError(t, bus.Publish(ctx, "1/ES", events.WorkflowApproved{
		BaseEvent:  events.NewBaseEvent(events.WorkflowApprovedEvent, "wf-1", 1, "ES"),
		Version:    4,
		ReviewerID: "admin-1",
	}))

	assert.Eventually(t, func() bool {
		return strings.Contains(output.String(), "Workflow approved")
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, output.String(), "reviewer=admin-1")
	assert.Contains(t, output.String(), "module=audit")
}
