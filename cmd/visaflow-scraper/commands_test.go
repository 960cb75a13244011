package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/visaflow/pkg/persistence"
	"github.com/dukex/visaflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDocument = `
visa_types:
  - id: 1
    code: B2
    is_active: true
mappings:
  - service: PanelPhysician
    from_country: AD
    to_country: ES
reviewers:
  - id: admin-1
`

func TestSeedThenOnce(t *testing.T) {
	dataDir := t.TempDir()
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seedDocument), 0o600))

	root := newRootCommand()
	require.NoError(t, root.Run(t.Context(), []string{"visaflow-scraper", "--database-url", dataDir, "--log-level", "error", "seed", seedPath}))

	var out bytes.Buffer

	root = newRootCommand()
	root.Writer = &out

	require.NoError(t, root.Run(t.Context(), []string{"visaflow-scraper", "--database-url", dataDir, "--log-level", "error", "once", "B2", "AD"}))

	assert.Contains(t, out.String(), "success=true duplicate=false")
	assert.Contains(t, out.String(), "Using ES content for AD")

	store := file.NewPersistence(dataDir)

	pending, err := store.WorkflowRepository().ListPending(t.Context(), persistence.ListPendingOptions{CountryCode: "AD"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Summary.StepCount)
}

func TestOnce_UnknownVisaType(t *testing.T) {
	var out bytes.Buffer

	root := newRootCommand()
	root.Writer = &out

	err := root.Run(t.Context(), []string{"visaflow-scraper", "--database-url", t.TempDir(), "--log-level", "error", "once", "ZZ9", "ES"})
	require.Error(t, err)
	assert.Contains(t, out.String(), "success=false")
}

func TestOnce_RequiresTwoArguments(t *testing.T) {
	root := newRootCommand()

	err := root.Run(t.Context(), []string{"visaflow-scraper", "--database-url", t.TempDir(), "once", "B2"})
	assert.ErrorContains(t, err, "expected <visa-type> <country>")
}
