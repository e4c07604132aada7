package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type CheckKind string

const (
	CheckResolution  CheckKind = "RESOLUTION"
	CheckFPS         CheckKind = "FPS"
	CheckBitrate     CheckKind = "BITRATE"
	CheckAvgLoudness CheckKind = "AVG_LOUDNESS"
)

var checkAliases = map[string]CheckKind{
	"RESOLUTION":   CheckResolution,
	"FPS":          CheckFPS,
	"BITRATE":      CheckBitrate,
	"AVG_LOUDNESS": CheckAvgLoudness,
	"LOUDNESS":     CheckAvgLoudness,
}

// ParseCheckKind accepts the canonical names case-insensitively, plus
// LOUDNESS as a short form of AVG_LOUDNESS.
func ParseCheckKind(raw string) (CheckKind, error) {
	kind, ok := checkAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown check kind %q", raw)
	}
	return kind, nil
}

// NormalizeChecks parses and de-duplicates a requested check set while
// keeping the caller's order.
func NormalizeChecks(raw []string) ([]CheckKind, error) {
	seen := make(map[CheckKind]struct{}, len(raw))
	out := make([]CheckKind, 0, len(raw))
	for _, r := range raw {
		kind, err := ParseCheckKind(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out, nil
}

type AnalysisJob struct {
	ID           string
	OwnerID      string
	AssetID      string
	Status       JobStatus
	Requested    []CheckKind
	Result       json.RawMessage
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}
