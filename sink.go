package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LogSink reports terminal outcomes to the structured log. It is always
// installed; the webhook sink is layered on top when configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) OnComplete(result RunResult) {
	s.log.Info().Str("message", result.Message).Msg("checkout completed")
}

func (s *LogSink) OnError(result RunResult) {
	s.log.Error().Str("error", result.Error).Msg("checkout failed")
}

// WebhookSink POSTs the outcome to a Discord-style webhook. Delivery is
// best-effort with bounded retries; a dead webhook never fails the run.
type WebhookSink struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewWebhookSink(url string, log zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (s *WebhookSink) OnComplete(result RunResult) {
	s.post(fmt.Sprintf("✅ Checkout completed: %s", result.Message))
}

func (s *WebhookSink) OnError(result RunResult) {
	s.post(fmt.Sprintf("❌ Checkout failed: %s", result.Error))
}

func (s *WebhookSink) post(content string) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook payload marshal failed")
		return
	}

	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return
			}
			err = fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("webhook delivery failed")
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
}

// MultiSink fans one terminal callback out to several sinks.
type MultiSink struct {
	sinks []ResultSink
}

func NewMultiSink(sinks ...ResultSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) OnComplete(result RunResult) {
	for _, s := range m.sinks {
		s.OnComplete(result)
	}
}

func (m *MultiSink) OnError(result RunResult) {
	for _, s := range m.sinks {
		s.OnError(result)
	}
}
