// Package report renders the final recovery report: what was selected, why
// it scored the way it did, how validation went, and which checkpoints exist.
// The report is the machine-readable record a documentation pipeline consumes,
// so it is validated against an embedded JSON schema before it is written.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/gitforensics/salvage/internal/orchestrate"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/internal/session"
)

//go:embed schema.json
var reportSchema []byte

// FileName is the report's name inside the session directory.
const FileName = "report.yaml"

// Selection records one recovered path with its full score breakdown.
type Selection struct {
	Path        string            `json:"path" yaml:"path"`
	CommitID    string            `json:"commit_id" yaml:"commit_id"`
	ContentHash string            `json:"content_hash" yaml:"content_hash"`
	Origin      string            `json:"origin" yaml:"origin"`
	Source      string            `json:"source" yaml:"source"`
	Checkpoint  string            `json:"checkpoint" yaml:"checkpoint"`
	ScoreValue  int               `json:"score_value" yaml:"score_value"`
	ScoreWhy    []score.Component `json:"score_components" yaml:"score_components"`
}

// Validation records one path's post-recovery verdict.
type Validation struct {
	Path   string `json:"path" yaml:"path"`
	Valid  bool   `json:"valid" yaml:"valid"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Checkpoint mirrors a session checkpoint into the report.
type Checkpoint struct {
	Label     string    `json:"label" yaml:"label"`
	CommitID  string    `json:"commit_id" yaml:"commit_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Report is the complete session summary.
type Report struct {
	SessionID       string       `json:"session_id" yaml:"session_id"`
	Symptom         string       `json:"symptom" yaml:"symptom"`
	EmergencyBranch string       `json:"emergency_branch" yaml:"emergency_branch"`
	State           string       `json:"state" yaml:"state"`
	StartedAt       time.Time    `json:"started_at" yaml:"started_at"`
	GeneratedAt     time.Time    `json:"generated_at" yaml:"generated_at"`
	Targets         []string     `json:"targets" yaml:"targets"`
	Selections      []Selection  `json:"selections" yaml:"selections"`
	Validations     []Validation `json:"validations" yaml:"validations"`
	Checkpoints     []Checkpoint `json:"checkpoints" yaml:"checkpoints"`
	LedgerVerified  bool         `json:"ledger_verified" yaml:"ledger_verified"`
}

// Build assembles a report from the session's persisted artifacts.
func Build(sess *session.RecoverySession, recovered []orchestrate.RecoveredPath, ranking map[string][]score.Ranked, outcome *orchestrate.ValidationOutcome, ledgerVerified bool, now time.Time) *Report {
	rep := &Report{
		SessionID:       sess.SessionID,
		Symptom:         sess.Symptom,
		EmergencyBranch: sess.EmergencyBranch,
		State:           string(sess.State),
		StartedAt:       sess.StartedAt,
		GeneratedAt:     now.UTC(),
		Targets:         sess.Targets,
		Selections:      []Selection{},
		Validations:     []Validation{},
		Checkpoints:     []Checkpoint{},
		LedgerVerified:  ledgerVerified,
	}

	for _, entry := range recovered {
		selection := Selection{
			Path:        entry.Path,
			CommitID:    entry.CommitID,
			ContentHash: entry.ContentHash,
			Checkpoint:  entry.Checkpoint,
		}

		for _, ranked := range ranking[entry.Path] {
			if ranked.Candidate.CommitIDHex == entry.CommitID {
				selection.Origin = string(ranked.Candidate.Origin)
				selection.Source = ranked.Candidate.Source
				selection.ScoreValue = ranked.Score.Value
				selection.ScoreWhy = ranked.Score.Components

				break
			}
		}

		rep.Selections = append(rep.Selections, selection)
	}

	if outcome != nil {
		for _, verdict := range outcome.Paths {
			rep.Validations = append(rep.Validations, Validation{
				Path:   verdict.Path,
				Valid:  verdict.Valid,
				Reason: verdict.Reason,
			})
		}
	}

	for _, checkpoint := range sess.Checkpoints {
		rep.Checkpoints = append(rep.Checkpoints, Checkpoint{
			Label:     checkpoint.Label,
			CommitID:  checkpoint.CommitID,
			CreatedAt: checkpoint.CreatedAt,
		})
	}

	return rep
}

// Validate checks the report against the embedded JSON schema.
func (r *Report) Validate() error {
	document, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(reportSchema),
		gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate report: %w", err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return fmt.Errorf("report schema violation: %s: %s", first.Field(), first.Description())
	}

	return nil
}

// Write validates the report and writes it as YAML into dir.
func (r *Report) Write(dir string) (string, error) {
	err := r.Validate()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report yaml: %w", err)
	}

	path := filepath.Join(dir, FileName)

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}

// Load reads a previously written report back from dir.
func Load(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var rep Report

	err = yaml.Unmarshal(data, &rep)
	if err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	return &rep, nil
}
