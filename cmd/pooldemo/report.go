package main

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/coachpo/objpool/internal/pool"
)

type demoReport struct {
	RunID       string                `json:"run_id"`
	Environment string                `json:"environment"`
	Scenario    []scenarioStep        `json:"scenario"`
	Workload    workloadResult        `json:"workload"`
	Pools       map[string]pool.Stats `json:"pools"`
}

// encodeJSON marshals v as indented JSON without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
