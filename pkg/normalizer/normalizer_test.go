package normalizer_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/visaflow/pkg/fetcher"
	"github.com/dukex/visaflow/pkg/models"
	"github.com/dukex/visaflow/pkg/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer() *normalizer.Normalizer {
	return normalizer.New(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func capture(source, country, body string) *models.RawCapture {
	return &models.RawCapture{
		Source:      source,
		CountryCode: country,
		URL:         "https://example.com/" + country,
		FetchedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ContentType: "text/html",
		Body:        body,
	}
}

func TestGenerateStepKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title    string
		expected string
	}{
		{"Medical Examination", "medical_examination"},
		{"Visa Application Form", "visa_application_form"},
		{"Step 1: File Petition", "step_file_petition"},
		{"Pay the visa fee at the bank", "pay_the_visa"},
		{"DS-160 Form", "ds160_form"},
		{"Go to an ER", ""},
		{"  Medical   Examination (required) ", "medical_examination_required"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizer.GenerateStepKey(tt.title))
		})
	}
}

// Distinct titles sharing their first three significant words collide. The key is kept as is.
func TestGenerateStepKey_CollisionIsPreserved(t *testing.T) {
	t.Parallel()

	first := normalizer.GenerateStepKey("Medical examination appointment in Madrid")
	second := normalizer.GenerateStepKey("Medical examination appointment in Barcelona")

	assert.Equal(t, first, second)
	assert.Equal(t, "medical_examination_appointment", first)
}

func TestNormalize_EmbassyFixture(t *testing.T) {
	t.Parallel()

	raw, err := fetcher.NewEmbassySource(fetcher.DefaultFixtures()).Fetch(t.Context(), "B2", "ES")
	require.NoError(t, err)

	workflow, err := newNormalizer().Normalize(t.Context(), raw)
	require.NoError(t, err)

	assert.Equal(t, models.SourceEmbassy, workflow.Source)
	assert.Equal(t, raw.Fingerprint, workflow.ContentHash)
	assert.Equal(t, []string{"https://embassy-es.example.com/doctors"}, workflow.SourceURLs)

	require.Len(t, workflow.Steps, 3)

	keys := make([]string, 0, len(workflow.Steps))
	for i, step := range workflow.Steps {
		assert.Equal(t, i+1, step.Ordinal)
		assert.NotEmpty(t, step.Description)

		keys = append(keys, step.Key)
	}

	assert.Equal(t, []string{"visa_application_form", "medical_examination", "consular_interview"}, keys)
	assert.Equal(t, "Complete the online visa application form and print the confirmation page. Bring the confirmation page to every appointment.",
		workflow.Steps[0].Description)

	require.Len(t, workflow.Doctors, 2)

	doctor := workflow.Doctors[0]
	assert.Equal(t, "Dr. Maria Garcia Lopez", doctor.Name)
	assert.Equal(t, "Calle de Serrano 45, 28001 Madrid", doctor.Address)
	assert.Equal(t, "+34 91 555 0101", doctor.Phone)
	assert.Equal(t, "Madrid", doctor.City)
	assert.Equal(t, "ES", doctor.CountryCode)
	assert.Equal(t, raw.URL, doctor.SourceURL)
	assert.Equal(t, "Barcelona", workflow.Doctors[1].City)

	stepCount, ok := workflow.Metadata["stepCount"].Number()
	require.True(t, ok)
	assert.InDelta(t, 3, stepCount, 0)

	doctorCount, _ := workflow.Metadata["doctorCount"].Number()
	assert.InDelta(t, 2, doctorCount, 0)
}

func TestNormalize_EmbassyHeadingFallback(t *testing.T) {
	t.Parallel()

	raw, err := fetcher.NewEmbassySource(fetcher.DefaultFixtures()).Fetch(t.Context(), "B2", "DE")
	require.NoError(t, err)

	workflow, err := newNormalizer().Normalize(t.Context(), raw)
	require.NoError(t, err)

	require.Len(t, workflow.Steps, 3)
	assert.Equal(t, "step_application_form", workflow.Steps[0].Key)
	assert.Equal(t, "Submit the online application form before booking any appointment. Keep the barcode page for your records.",
		workflow.Steps[0].Description)
	assert.Equal(t, "medical_examination_appointment", workflow.Steps[1].Key)
	assert.Equal(t, "visa_fee_payment", workflow.Steps[2].Key)

	require.Len(t, workflow.Doctors, 1)
	assert.Equal(t, "Dr. Klaus Becker", workflow.Doctors[0].Name)
	assert.Equal(t, "Berlin", workflow.Doctors[0].City)
	assert.Empty(t, workflow.Doctors[0].Phone)
}

func TestNormalize_USCIS(t *testing.T) {
	t.Parallel()

	source := fetcher.NewUSCISSource(fetcher.DefaultFixtures())

	t.Run("generated page", func(t *testing.T) {
		raw, err := source.Fetch(t.Context(), "B2", "FR")
		require.NoError(t, err)

		workflow, err := newNormalizer().Normalize(t.Context(), raw)
		require.NoError(t, err)

		require.Len(t, workflow.Steps, 4)
		assert.Equal(t, "step_file_petition", workflow.Steps[0].Key)
		assert.Equal(t, "Step 3: Medical Examination", workflow.Steps[2].Title)
		assert.Contains(t, workflow.Steps[2].Description, "panel physician in FR")
		assert.Empty(t, workflow.Doctors)
	})

	t.Run("fixture requirements", func(t *testing.T) {
		raw, err := source.Fetch(t.Context(), "H1B", "FR")
		require.NoError(t, err)

		workflow, err := newNormalizer().Normalize(t.Context(), raw)
		require.NoError(t, err)

		require.Len(t, workflow.Steps, 4)
		assert.Empty(t, workflow.Steps[0].Data)

		requirements, ok := workflow.Steps[1].Data["requirements"].List()
		require.True(t, ok)
		assert.Equal(t, []string{"Form I-129", "Certified labor condition application", "Filing fee"}, requirements)
	})
}

func TestNormalize_ListItemsOncePerNode(t *testing.T) {
	t.Parallel()

	body := `<html><body>
		<div class="requirements-section">
			<ol class="steps">
				<li><b>Document Checklist</b><p>Bring originals.</p></li>
				<li><b>Interview Appointment</b></li>
			</ol>
		</div>
		<ol><li>Pay the application fee online before the interview date</li></ol>
	</body></html>`

	workflow, err := newNormalizer().Normalize(t.Context(), capture(models.SourceEmbassy, "IT", body))
	require.NoError(t, err)

	require.Len(t, workflow.Steps, 3)
	assert.Equal(t, "document_checklist", workflow.Steps[0].Key)
	assert.Equal(t, "interview_appointment", workflow.Steps[1].Key)
	assert.Equal(t, "Interview Appointment", workflow.Steps[1].Description)
	assert.Equal(t, "Pay the application fee online before the interview date", workflow.Steps[2].Title)
	assert.Equal(t, 3, workflow.Steps[2].Ordinal)
}

func TestNormalize_LongFirstLineIsTruncated(t *testing.T) {
	t.Parallel()

	long := "Applicants must bring " +
		"a printed confirmation page together with two passport photographs and the original passport valid for six months"

	workflow, err := newNormalizer().Normalize(t.Context(), capture(models.SourceEmbassy, "IT", "<ol><li>"+long+"</li></ol>"))
	require.NoError(t, err)

	require.Len(t, workflow.Steps, 1)
	assert.Equal(t, long[:100]+"...", workflow.Steps[0].Title)
}

func TestNormalize_DoctorLabelsWithoutWhitespace(t *testing.T) {
	t.Parallel()

	body := `<html><body><ol><li><strong>Medical Examination</strong></li></ol>` +
		`<div class="physician"><div class="doctor-name">Dr. Ana Silva</div><p>Address: Rua Augusta 10</p><p>Phone: +351 21 000 0000</p><p>City: Lisboa</p></div>` +
		`</body></html>`

	workflow, err := newNormalizer().Normalize(t.Context(), capture(models.SourceEmbassy, "PT", body))
	require.NoError(t, err)

	require.Len(t, workflow.Doctors, 1)
	assert.Equal(t, "Rua Augusta 10", workflow.Doctors[0].Address)
	assert.Equal(t, "+351 21 000 0000", workflow.Doctors[0].Phone)
	assert.Equal(t, "Lisboa", workflow.Doctors[0].City)
	assert.Equal(t, "PT", workflow.Doctors[0].CountryCode)
}

func TestNormalize_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		capture *models.RawCapture
		err     error
	}{
		{
			name:    "unknown source",
			capture: capture("Consulate", "ES", "<ol><li>Step</li></ol>"),
			err:     normalizer.ErrUnknownSource,
		},
		{
			name: "non html content",
			capture: func() *models.RawCapture {
				c := capture(models.SourceEmbassy, "ES", `{"steps":[]}`)
				c.ContentType = "application/json"

				return c
			}(),
			err: normalizer.ErrUnparseable,
		},
		{
			name:    "empty body",
			capture: capture(models.SourceEmbassy, "ES", "   "),
			err:     normalizer.ErrUnparseable,
		},
		{
			name:    "no structure",
			capture: capture(models.SourceUSCIS, "ES", "<html><body><p>Nothing here</p></body></html>"),
			err:     normalizer.ErrUnparseable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newNormalizer().Normalize(t.Context(), tt.capture)
			require.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, normalizer.ErrUnparseable)
		})
	}
}
