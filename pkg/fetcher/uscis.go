package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/models"
)

// USCISSource is the last resort tier. It serves uscis_<visa>_requirements.html when present
// and a generic requirements page otherwise, so it never declines.
type USCISSource struct {
	fixtures fs.FS
	now      func() time.Time
}

func NewUSCISSource(fixtures fs.FS) *USCISSource {
	return &USCISSource{fixtures: fixtures, now: time.Now}
}

func (s *USCISSource) Name() string {
	return models.SourceUSCIS
}

func (s *USCISSource) Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	visa := strings.ToLower(visaTypeCode)

	var content string

	body, err := fs.ReadFile(s.fixtures, "uscis_"+visa+"_requirements.html")

	switch {
	case err == nil:
		content = string(body)
	case errors.Is(err, fs.ErrNotExist):
		content = genericUSCISPage(visaTypeCode, countryCode, s.now().UTC())
	default:
		return nil, fmt.Errorf("failed to read uscis page for %s: %w", visaTypeCode, err)
	}

	url := "https://www.uscis.gov/working-in-the-united-states/" + visa

	return newCapture(models.SourceUSCIS, visaTypeCode, countryCode, url, "USCIS-Fake/1.0", content), nil
}

// The generated page carries the date, so its fingerprint changes once per day.
func genericUSCISPage(visaTypeCode, countryCode string, at time.Time) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>%[1]s Visa Requirements - USCIS</title>
</head>
<body>
    <div class="uscis-content">
        <h1>%[1]s Requirements</h1>

        <div class="requirements-section">
            <h2>Required Steps for %[1]s Application</h2>

            <div class="step">
                <h3>Step 1: File Petition</h3>
                <p>File the appropriate petition with USCIS.</p>
            </div>

            <div class="step">
                <h3>Step 2: Document Preparation</h3>
                <p>Gather all required supporting documents.</p>
            </div>

            <div class="step">
                <h3>Step 3: Medical Examination</h3>
                <p>Complete medical examination with authorized panel physician in %[2]s.</p>
            </div>

            <div class="step">
                <h3>Step 4: Interview</h3>
                <p>Attend consular interview if required.</p>
            </div>
        </div>

        <p><em>Source: USCIS Generic Guidelines</em></p>
        <p><em>Generated for testing: %[3]s</em></p>
    </div>
</body>
</html>
`, visaTypeCode, countryCode, at.Format(time.DateOnly))
}
