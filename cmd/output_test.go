package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleUnits() UnitsOutput {
	return UnitsOutput{
		StatePath: "/run/systemd-shim-state",
		Units: []UnitEntry{
			{Name: "user-1000.slice", Kind: "Slice", Path: "user.slice/user-1000.slice", UID: "1000", Tasks: 4},
		},
	}
}

func TestPrintOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintOutput(&buf, "json", sampleUnits()))

	var result UnitsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, sampleUnits(), result)
	assert.NotContains(t, buf.String(), "pruned")
}

func TestPrintOutput_YAML(t *testing.T) {
	for _, format := range []string{"yaml", "yml", "YAML"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, PrintOutput(&buf, format, sampleUnits()))

			var result UnitsOutput
			require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
			assert.Equal(t, sampleUnits(), result)
			assert.Contains(t, buf.String(), "statePath: /run/systemd-shim-state")
		})
	}
}

func TestPrintOutput_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintOutput(&buf, "text", sampleUnits()))
	assert.Contains(t, buf.String(), "user-1000.slice")
}

func TestPrintOutput_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	err := PrintOutput(&buf, "xml", sampleUnits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: xml")
	assert.Empty(t, buf.String())
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"yaml", false},
		{"yml", false},
		{"JSON", false},
		{"xml", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			err := validateOutputFormat(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
