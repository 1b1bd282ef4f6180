package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	// DefaultTimeout bounds a single feed request
	DefaultTimeout = 30 * time.Second

	// MaxBodySize caps how much of a feed response is read
	MaxBodySize = 32 << 20

	userAgent = "truckee-calendar/1.0 (+https://www.townoftruckee.gov/Calendar.aspx)"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Client fetches iCalendar feeds over HTTP
type Client struct {
	httpClient *http.Client
}

// NewClient creates a feed client with the given per-request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch issues a single GET for url and parses the body as one calendar.
// No retries are attempted.
func (c *Client) Fetch(ctx context.Context, url string) (*ical.Calendar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", ical.MIMEType+", */*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodySize)
	}

	return Parse(body)
}

// Parse decodes data as exactly one VCALENDAR object
func Parse(data []byte) (cal *ical.Calendar, err error) {
	// the decoder panics on some truncated parameter lists
	defer func() {
		if r := recover(); r != nil {
			cal, err = nil, fmt.Errorf("decode calendar: malformed content line: %v", r)
		}
	}()

	data = bytes.TrimPrefix(data, utf8BOM)
	if err := validateFormat(data); err != nil {
		return nil, err
	}

	dec := ical.NewDecoder(bytes.NewReader(data))
	cal, err = dec.Decode()
	if err == io.EOF {
		return nil, fmt.Errorf("decode calendar: unexpected end of data")
	}
	if err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}

	if _, err := dec.Decode(); err == nil {
		return nil, fmt.Errorf("decode calendar: found multiple calendars where only one is allowed")
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode calendar: trailing data: %w", err)
	}

	return cal, nil
}

// validateFormat rejects bodies that are obviously not iCalendar, such as
// login or error pages served with a 200 status.
func validateFormat(data []byte) error {
	body := strings.TrimSpace(string(data))
	if body == "" {
		return fmt.Errorf("empty response body")
	}

	upper := strings.ToUpper(body)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return fmt.Errorf("received HTML instead of iCalendar data")
	}

	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		preview := body
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return fmt.Errorf("invalid iCalendar format - expected BEGIN:VCALENDAR, got: %s", preview)
	}

	return nil
}
