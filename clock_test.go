package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseReleaseTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			input: "2026-09-01T16:00:00Z",
			want:  time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC),
		},
		{
			input: "2026-09-01 16:00",
			want:  time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC),
		},
		{
			input: "2026-09-01 16:00:30",
			want:  time.Date(2026, 9, 1, 16, 0, 30, 0, time.UTC),
		},
		{
			input: "2026-09-01 16:00 UTC",
			want:  time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC),
		},
		{
			input: "  2026-09-01 16:00  ",
			want:  time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC),
		},
		{input: "next tuesday", wantErr: true},
		{input: "16:00", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseReleaseTime(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseReleaseTime(%q) accepted, want error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReleaseTime(%q) error = %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseReleaseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTimeSyncAcceptsLegacyDateFormats(t *testing.T) {
	// Some origins still emit RFC 850 Date headers.
	tests := []string{
		time.Now().UTC().Format(http.TimeFormat),
		time.Now().UTC().Format(time.RFC850),
	}

	for _, date := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Date", date)
		}))

		ts := NewTimeSync()
		ts.servers = []string{server.URL}
		if err := ts.Sync(); err != nil {
			t.Errorf("Sync() with Date %q: %v", date, err)
		}
		server.Close()
	}
}

func TestTimeSyncOffset(t *testing.T) {
	ts := NewTimeSync()

	if ts.Offset() != 0 {
		t.Error("unsynced offset should be zero")
	}

	ts.offset = 2 * time.Second
	now := ts.Now()
	skew := now.Sub(time.Now().Add(2 * time.Second))
	if skew < -100*time.Millisecond || skew > 100*time.Millisecond {
		t.Errorf("Now() did not apply the offset, skew %v", skew)
	}
}
