// pkg/report/results_data.go
// This file stores the structured results next to the AsciiDoc report

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smuckster/fleetcheck/pkg/scan"
)

// RunData is the JSON form of one run
type RunData struct {
	RunID       string     `json:"run_id"`
	Check       string     `json:"check"`
	GeneratedAt time.Time  `json:"generated_at"`
	Hosts       []HostData `json:"hosts"`
}

// HostData is the JSON form of one host result
type HostData struct {
	Hostname    string           `json:"hostname"`
	Error       string           `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
	Findings    []FindingData    `json:"findings"`
	Remediation *RemediationData `json:"remediation,omitempty"`
}

// FindingData is the JSON form of one finding
type FindingData struct {
	Check    string `json:"check"`
	Item     string `json:"item,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RemediationData is the JSON form of a volume expansion
type RemediationData struct {
	VolumeID      string `json:"volume_id,omitempty"`
	CurrentSizeGB int    `json:"current_size_gb,omitempty"`
	TargetSizeGB  int    `json:"target_size_gb,omitempty"`
	Stage         string `json:"stage"`
	Error         string `json:"error,omitempty"`
}

// NewHostData converts a host result
func NewHostData(result scan.HostResult) HostData {
	data := HostData{
		Hostname:   result.Host,
		DurationMS: result.Duration.Milliseconds(),
		Findings:   make([]FindingData, 0, len(result.Findings)),
	}
	if result.Err != nil {
		data.Error = result.Err.Error()
	}
	for _, finding := range result.Findings {
		data.Findings = append(data.Findings, FindingData{
			Check:    finding.Check,
			Item:     finding.Item,
			Severity: string(finding.Severity),
			Message:  finding.Message,
		})
	}
	if result.Remediation != nil || result.RemediationErr != nil {
		data.Remediation = &RemediationData{}
		if state := result.Remediation; state != nil {
			data.Remediation.VolumeID = state.VolumeID
			data.Remediation.CurrentSizeGB = state.CurrentSizeGB
			data.Remediation.TargetSizeGB = state.TargetSizeGB
			data.Remediation.Stage = string(state.Stage)
		}
		if result.RemediationErr != nil {
			data.Remediation.Error = result.RemediationErr.Error()
		}
	}
	return data
}

func dataPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), ".data", filepath.Base(outputPath)+".json")
}

// SaveResults saves the run results to a JSON file in a .data subdirectory
func SaveResults(outputPath, runID, check string, results []scan.HostResult) error {
	jsonFile := dataPath(outputPath)
	if err := os.MkdirAll(filepath.Dir(jsonFile), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := RunData{
		RunID:       runID,
		Check:       check,
		GeneratedAt: time.Now().UTC(),
		Hosts:       make([]HostData, 0, len(results)),
	}
	for _, result := range results {
		data.Hosts = append(data.Hosts, NewHostData(result))
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal check results: %w", err)
	}

	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write check results: %w", err)
	}

	return nil
}

// LoadResults loads run results saved next to outputPath
func LoadResults(outputPath string) (*RunData, error) {
	jsonData, err := os.ReadFile(dataPath(outputPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read check results: %w", err)
	}

	var data RunData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal check results: %w", err)
	}

	return &data, nil
}
