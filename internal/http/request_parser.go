// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data:
// owner resolution, month parameters and bounded JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const (
	// OwnerHeader selects the data owner of a request.
	OwnerHeader = "X-Owner-ID"

	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
	maxOwnerLen   = 128
)

var errBodyTooLarge = errors.New("request body too large")

// ParseOwner returns the sanitized X-Owner-ID header, or fallback when absent.
func ParseOwner(r *http.Request, fallback string) (string, error) {
	owner := sanitizeInput(r.Header.Get(OwnerHeader))
	if owner == "" {
		return fallback, nil
	}
	if len(owner) > maxOwnerLen {
		return "", fmt.Errorf("owner id longer than %d characters", maxOwnerLen)
	}
	return owner, nil
}

// ParseMonthParam reads a YYYY-MM value from the query, defaulting to the
// month containing now when the parameter is absent.
func ParseMonthParam(query url.Values, key string, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.DateOf(now).Month(), nil
	}
	return core.ParseMonth(v)
}

// ParseIntParam reads a positive integer from the query, returning def when
// the parameter is absent.
func ParseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

// DecodeJSON decodes a single JSON document of at most maxJSONBody bytes,
// rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must contain a single JSON document")
	}
	return nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
