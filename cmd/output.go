// Package cmd provides output formatting utilities for systemd-shim CLI.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
var outputFormats = []string{"text", "json", "yaml"}

// PrintOutput formats and prints data according to the specified output format.
func PrintOutput(w io.Writer, format string, data any) error {
	switch strings.ToLower(format) {
	case "json":
		return printJSON(w, data)
	case "yaml", "yml":
		return printYAML(w, data)
	case "text":
		return printText(w, data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func validateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json", "yaml", "yml":
		return nil
	}
	return fmt.Errorf("invalid output format: %s, allowed formats are: %v", format, outputFormats)
}

// printJSON outputs data as JSON.
func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML outputs data as YAML.
func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer func() {
		_ = encoder.Close()
	}()
	return encoder.Encode(data)
}

// printText is the fallback for callers that do not format text themselves.
func printText(w io.Writer, data any) error {
	_, err := fmt.Fprintf(w, "%+v\n", data)
	return err
}

// UnitEntry is one row of the units listing.
type UnitEntry struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Path   string `json:"path" yaml:"path"`
	UID    string `json:"uid,omitempty" yaml:"uid,omitempty"`
	Tasks  int    `json:"tasks" yaml:"tasks"`
	Pruned bool   `json:"pruned,omitempty" yaml:"pruned,omitempty"`
}

// UnitsOutput is the structured output of the units command.
type UnitsOutput struct {
	StatePath string      `json:"statePath" yaml:"statePath"`
	Units     []UnitEntry `json:"units" yaml:"units"`
}

// CheckResultStructured represents a health check result in structured format.
type CheckResultStructured struct {
	Name        string   `json:"name" yaml:"name"`
	Status      string   `json:"status" yaml:"status"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// HealthCheckOutput represents the output of the doctor command.
type HealthCheckOutput struct {
	Overall string                  `json:"overall" yaml:"overall"`
	Checks  []CheckResultStructured `json:"checks" yaml:"checks"`
	Summary map[string]int          `json:"summary" yaml:"summary"`
}
