package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Diagnostics writes page-state artifacts for failed runs: a screenshot and
// the page HTML, keyed by timestamp and run ID, for offline inspection.
type Diagnostics struct {
	dir string
	log zerolog.Logger
}

func NewDiagnostics(dir string, log zerolog.Logger) *Diagnostics {
	return &Diagnostics{dir: dir, log: log}
}

// Capture snapshots the session's current page. Capture failures are
// logged, never escalated: diagnostics must not mask the original error.
func (d *Diagnostics) Capture(session Session, runID string, stageErr *StageError) (string, error) {
	if d.dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		d.log.Warn().Err(err).Msg("cannot create artifacts dir")
		return "", err
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	base := fmt.Sprintf("%s_%s_%s", stamp, runID, stageErr.Stage)

	shot, html, err := session.Snapshot()
	if err != nil {
		d.log.Warn().Err(err).Msg("snapshot capture failed")
		if shot == nil && html == "" {
			return "", err
		}
	}

	var wrote string
	if len(shot) > 0 {
		path := filepath.Join(d.dir, base+".png")
		if err := os.WriteFile(path, shot, 0644); err != nil {
			d.log.Warn().Err(err).Str("path", path).Msg("screenshot write failed")
		} else {
			wrote = path
		}
	}
	if html != "" {
		path := filepath.Join(d.dir, base+".html")
		if err := os.WriteFile(path, []byte(html), 0644); err != nil {
			d.log.Warn().Err(err).Str("path", path).Msg("html write failed")
		} else if wrote == "" {
			wrote = path
		}
	}

	if wrote != "" {
		d.log.Info().Str("artifact", wrote).Str("stage", string(stageErr.Stage)).Msg("diagnostic snapshot captured")
	}
	return wrote, nil
}
