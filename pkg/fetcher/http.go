package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/visaflow/pkg/models"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultMaxBodyBytes = 4 << 20
)

var (
	ErrInvalidURLTemplate = errors.New("url template must contain {country}")
	ErrBodyTooLarge       = errors.New("response body too large")
)

// HTTPSource fetches a live page built from a URL template with {country} and {visa}
// placeholders. Requests are paced by a shared limiter.
type HTTPSource struct {
	name         string
	urlTemplate  string
	client       *http.Client
	limiter      *rate.Limiter
	availability *Availability
	maxBodyBytes int64
}

type HTTPSourceOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithHTTPAvailability declines countries marked unavailable in the shared set
// without issuing a request.
func WithHTTPAvailability(availability *Availability) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.availability = availability
	}
}

// WithMaxBodyBytes bounds the accepted response size. Larger responses fail the source.
func WithMaxBodyBytes(limit int64) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.maxBodyBytes = limit
	}
}

func WithRateLimit(limit rate.Limit, burst int) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewHTTPSource reports its captures under name so the matching parser is used on them.
func NewHTTPSource(name, urlTemplate string, opts ...HTTPSourceOption) (*HTTPSource, error) {
	if !strings.Contains(urlTemplate, "{country}") {
		return nil, ErrInvalidURLTemplate
	}

	source := &HTTPSource{
		name:         name,
		urlTemplate:  urlTemplate,
		client:       &http.Client{Timeout: defaultHTTPTimeout},
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		maxBodyBytes: defaultMaxBodyBytes,
	}

	for _, opt := range opts {
		opt(source)
	}

	return source, nil
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) URL(visaTypeCode, countryCode string) string {
	return strings.NewReplacer(
		"{country}", strings.ToLower(countryCode),
		"{visa}", strings.ToLower(visaTypeCode),
	).Replace(s.urlTemplate)
}

func (s *HTTPSource) Fetch(ctx context.Context, visaTypeCode, countryCode string) (*models.RawCapture, error) {
	if s.availability.IsUnavailable(countryCode) {
		return nil, fmt.Errorf("%s for %s marked unavailable: %w", s.name, countryCode, ErrSourceUnavailable)
	}

	err := s.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := s.URL(visaTypeCode, countryCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s returned %d: %w", url, resp.StatusCode, ErrSourceUnavailable)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s returned unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	if int64(len(body)) > s.maxBodyBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", url, s.maxBodyBytes, ErrBodyTooLarge)
	}

	capture := newCapture(s.name, visaTypeCode, countryCode, url, resp.Header.Get("Server"), string(body))

	capture.Headers = make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		capture.Headers[name] = strings.Join(values, ", ")
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		capture.ContentType = contentType
	}

	return capture, nil
}
