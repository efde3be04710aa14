package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TimeSync estimates the offset between the local clock and real time by
// averaging Date headers from a few well-run origins. Timed drops open to
// the second; a skewed local clock wastes the availability-retry budget.
type TimeSync struct {
	offset   time.Duration
	synced   bool
	lastSync time.Time
	servers  []string
	client   *http.Client
}

func NewTimeSync() *TimeSync {
	return &TimeSync{
		servers: []string{
			"https://www.google.com",
			"https://www.cloudflare.com",
			"https://www.amazon.com",
		},
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Sync queries each server with a HEAD request and averages the offsets
// from whichever respond. One responsive server is enough.
func (ts *TimeSync) Sync() error {
	var total time.Duration
	success := 0

	for _, server := range ts.servers {
		offset, err := ts.headerOffset(server)
		if err != nil {
			continue
		}
		total += offset
		success++
	}

	if success == 0 {
		return fmt.Errorf("time sync failed: no server responded")
	}

	ts.offset = total / time.Duration(success)
	ts.synced = true
	ts.lastSync = time.Now()
	return nil
}

func (ts *TimeSync) headerOffset(server string) (time.Duration, error) {
	before := time.Now()
	resp, err := ts.client.Head(server)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	after := time.Now()

	dateStr := resp.Header.Get("Date")
	if dateStr == "" {
		return 0, fmt.Errorf("no Date header from %s", server)
	}
	serverTime, err := http.ParseTime(dateStr)
	if err != nil {
		return 0, fmt.Errorf("parse Date header: %w", err)
	}

	// The header is whole-second; center it in the request window.
	mid := before.Add(after.Sub(before) / 2)
	return serverTime.Sub(mid), nil
}

// Offset returns the last computed clock offset; zero when never synced.
func (ts *TimeSync) Offset() time.Duration { return ts.offset }

// Now returns the corrected current time.
func (ts *TimeSync) Now() time.Time {
	return time.Now().Add(ts.offset)
}

// ParseReleaseTime parses user-friendly release-time formats, all UTC:
//   - "2025-01-15T16:00:00Z" (RFC3339)
//   - "2025-01-15 16:00"
//   - "2025-01-15 16:00:00"
//   - trailing " UTC" is tolerated
func ParseReleaseTime(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)
	timeStr = strings.TrimSuffix(timeStr, " UTC")
	timeStr = strings.TrimSuffix(timeStr, "UTC")
	timeStr = strings.TrimSpace(timeStr)

	if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04", timeStr); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", timeStr); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format %q, use YYYY-MM-DD HH:MM (UTC)", timeStr)
}
