package file

import (
	"context"
	"fmt"

	"github.com/dukex/visaflow/pkg/models"
	"github.com/google/uuid"
)

const capturesCollection = "captures"

// CaptureRepository stores raw captures as one file per fingerprint.
type CaptureRepository struct {
	root string
}

func NewCaptureRepository(root string) *CaptureRepository {
	return &CaptureRepository{root: root}
}

func (cr *CaptureRepository) Save(_ context.Context, capture *models.RawCapture) (bool, error) {
	if capture.Fingerprint == "" {
		capture.Fingerprint = models.Fingerprint(capture.Body)
	}

	if capture.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return false, fmt.Errorf("failed to generate capture ID: %w", err)
		}

		capture.ID = id.String()
	}

	created, err := createJSON(cr.root, capturesCollection, capture.Fingerprint, capture)
	if err != nil {
		return false, fmt.Errorf("failed to save capture %s: %w", capture.Fingerprint, err)
	}

	return created, nil
}

func (cr *CaptureRepository) GetByFingerprint(_ context.Context, fingerprint string) (*models.RawCapture, error) {
	var capture models.RawCapture

	found, err := readJSON(cr.root, capturesCollection, fingerprint, &capture)
	if err != nil || !found {
		return nil, err
	}

	return &capture, nil
}
