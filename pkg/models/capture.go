package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source tags written on captures and versions.
const (
	SourceEmbassy = "Embassy"
	SourceUSCIS   = "USCIS"
)

// RawCapture is the exact content retrieved from one source, kept as audit data.
type RawCapture struct {
	ID           string            `json:"id"`
	Source       string            `json:"source"`
	CountryCode  string            `json:"country_code"`
	VisaTypeCode string            `json:"visa_type_code"`
	URL          string            `json:"url"`
	FetchedAt    time.Time         `json:"fetched_at"`
	ContentType  string            `json:"content_type"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         string            `json:"body"`
	Fingerprint  string            `json:"fingerprint"`
}

// Fingerprint returns the lowercase hex SHA-256 of body.
func Fingerprint(body string) string {
	sum := sha256.Sum256([]byte(body))

	return hex.EncodeToString(sum[:])
}
