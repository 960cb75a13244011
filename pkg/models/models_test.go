package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requiredTag = "required"

// Value union tests

func TestValue_Accessors(t *testing.T) {
	s, ok := StringValue("fee").Str()
	assert.True(t, ok)
	assert.Equal(t, "fee", s)

	_, ok = StringValue("fee").Number()
	assert.False(t, ok)

	n, ok := IntValue(3).Number()
	assert.True(t, ok)
	assert.InDelta(t, 3.0, n, 0)

	b, ok := BoolValue(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	list, ok := ListValue([]string{"passport", "photo"}).List()
	assert.True(t, ok)
	assert.Equal(t, []string{"passport", "photo"}, list)
}

func TestValue_ListIsCopied(t *testing.T) {
	items := []string{"a", "b"}
	value := ListValue(items)
	items[0] = "changed"

	list, _ := value.List()
	assert.Equal(t, "a", list[0])
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"string", StringValue("madrid"), "madrid"},
		{"integer number", IntValue(2), "2"},
		{"fractional number", NumberValue(1.5), "1.5"},
		{"bool", BoolValue(false), "false"},
		{"list", ListValue([]string{"x", "y"}), "x, y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.String())
		})
	}
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.False(t, StringValue("1").Equal(IntValue(1)))
	assert.True(t, ListValue([]string{"a"}).Equal(ListValue([]string{"a"})))
	assert.False(t, ListValue([]string{"a"}).Equal(ListValue([]string{"a", "b"})))
}

func TestExtras_JSONIsDeterministic(t *testing.T) {
	extras := Extras{
		"stepCount":    IntValue(3),
		"contentType":  StringValue("text/html"),
		"requirements": ListValue([]string{"Form I-129"}),
		"verified":     BoolValue(true),
	}

	first, err := json.Marshal(extras)
	require.NoError(t, err)

	second, err := json.Marshal(extras)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.JSONEq(t, `{"contentType":"text/html","requirements":["Form I-129"],"stepCount":3,"verified":true}`, string(first))

	var decoded Extras
	require.NoError(t, json.Unmarshal(first, &decoded))

	for key, value := range extras {
		assert.True(t, value.Equal(decoded[key]), key)
	}
}

func TestValue_UnmarshalRejectsUnsupportedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"object", `{"nested": true}`},
		{"null", `null`},
		{"mixed list", `["a", 1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value Value

			err := json.Unmarshal([]byte(tt.input), &value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedValue))
		})
	}
}

// Workflow model tests

func TestWorkflowStatus_Valid(t *testing.T) {
	assert.True(t, WorkflowStatusPendingApproval.Valid())
	assert.True(t, WorkflowStatusApproved.Valid())
	assert.True(t, WorkflowStatusRejected.Valid())
	assert.False(t, WorkflowStatus("draft").Valid())
}

func TestNewSummary(t *testing.T) {
	normalized := &NormalizedWorkflow{
		Steps:      []NormalizedStep{{Key: "a"}, {Key: "b"}},
		Doctors:    []NormalizedDoctor{{Name: "Dr. A"}},
		SourceURLs: []string{"https://embassy-es.example.com/doctors"},
	}

	summary := NewSummary(normalized)
	assert.Equal(t, 2, summary.StepCount)
	assert.Equal(t, 1, summary.DoctorCount)
	assert.Equal(t, []string{"https://embassy-es.example.com/doctors"}, summary.SourceURLs)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(""))
	assert.Equal(t, Fingerprint("<html></html>"), Fingerprint("<html></html>"))
	assert.NotEqual(t, Fingerprint("a"), Fingerprint("b"))
}

// Reference model tests

func TestCountryServiceMapping_Validation(t *testing.T) {
	validate := validator.New()

	valid := CountryServiceMapping{Service: "PanelPhysician", FromCountry: "AD", ToCountry: "ES"}
	require.NoError(t, validate.Struct(valid))

	invalid := CountryServiceMapping{FromCountry: "AND", ToCountry: "ES"}
	err := validate.Struct(invalid)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	tags := map[string]string{}
	for _, fieldErr := range validationErrors {
		tags[fieldErr.Field()] = fieldErr.Tag()
	}

	assert.Equal(t, requiredTag, tags["Service"])
	assert.Equal(t, "len", tags["FromCountry"])
}

func TestDigestPayload_JSONShape(t *testing.T) {
	payload := NewDigestPayload()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"workflow_drafts","workflowDrafts":[]}`, string(data))
}
