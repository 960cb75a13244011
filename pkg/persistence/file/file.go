// Package file provides file-based persistence implementation for captures, workflow versions and digests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dukex/visaflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	captureRepo   *CaptureRepository
	workflowRepo  *WorkflowRepository
	referenceRepo *ReferenceRepository
	digestRepo    *DigestRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		captureRepo:   NewCaptureRepository(cleanRoot),
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		referenceRepo: NewReferenceRepository(cleanRoot),
		digestRepo:    NewDigestRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) CaptureRepository() persistence.CaptureRepository {
	return fp.captureRepo
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ReferenceRepository() persistence.ReferenceRepository {
	return fp.referenceRepo
}

func (fp *Persistence) DigestRepository() persistence.DigestRepository {
	return fp.digestRepo
}

// readJSON decodes root/collection/name.json into target. It reports false when the file does not exist.
func readJSON(root, collection, name string, target any) (bool, error) {
	filePath := filepath.Clean(path.Join(root, collection, name+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s/%s: %w", collection, name, err)
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, name, err)
	}

	return true, nil
}

// writeJSON replaces root/collection/name.json. The document is written to a temporary
// file and renamed into place, so readers see either the old or the new content.
func writeJSON(root, collection, name string, value any) error {
	tmpPath, err := stageJSON(root, collection, name, value)
	if err != nil {
		return err
	}

	err = os.Rename(tmpPath, path.Join(root, collection, name+".json"))
	if err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to replace %s/%s: %w", collection, name, err)
	}

	return nil
}

// createJSON writes the document only if it does not exist yet. It reports whether the file was created.
// The staged file is hard linked into place, which fails when the target exists.
func createJSON(root, collection, name string, value any) (bool, error) {
	tmpPath, err := stageJSON(root, collection, name, value)
	if err != nil {
		return false, err
	}

	defer func() { _ = os.Remove(tmpPath) }()

	err = os.Link(tmpPath, path.Join(root, collection, name+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to create %s/%s: %w", collection, name, err)
	}

	return true, nil
}

// stageJSON writes the marshaled value to a temporary file next to its final location.
// The .tmp suffix keeps it out of listNames.
func stageJSON(root, collection, name string, value any) (string, error) {
	dir := path.Join(root, collection)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s/%s: %w", collection, name, err)
	}

	handle, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage %s/%s: %w", collection, name, err)
	}

	_, err = handle.Write(data)
	if err == nil {
		err = handle.Close()
	} else {
		_ = handle.Close()
	}

	if err != nil {
		_ = os.Remove(handle.Name())

		return "", fmt.Errorf("failed to write %s/%s: %w", collection, name, err)
	}

	return handle.Name(), nil
}

// listNames returns the document names of a collection, without the .json extension.
func listNames(root, collection string) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(root), collection+"/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	names := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		names = append(names, strings.TrimSuffix(path.Base(file), ".json"))
	}

	return names, nil
}
