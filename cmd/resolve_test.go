package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/macro-cli/internal/model"
)

func TestCheckOutputFormat(t *testing.T) {
	assert.NoError(t, checkOutputFormat("json"))
	assert.NoError(t, checkOutputFormat("yaml"))
	assert.Error(t, checkOutputFormat("xml"))
}

func TestWriteOutput(t *testing.T) {
	r := twoEggs
	r.Source = model.SourceUSDA
	r.ValidationFlags = []string{}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "json", &r))
	var fromJSON model.MacroResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, 143.0, fromJSON.Calories)
	assert.Contains(t, buf.String(), "\n  \"protein_g\": 12.6")

	buf.Reset()
	require.NoError(t, writeOutput(&buf, "yaml", &r))
	assert.Contains(t, buf.String(), "source: usda")
	var fromYAML model.MacroResult
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, 9.5, fromYAML.FatG)
	assert.Equal(t, []string{"Egg, whole, raw, fresh"}, fromYAML.Items)
}
