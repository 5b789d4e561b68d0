package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecommendCommand_Stdin(t *testing.T) {
	out, err := execute(t, `{"date":"2024-05-01T00:00:00Z"}`, "recommend")
	require.NoError(t, err)

	var outputs []domain.RecommendationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &outputs))
	require.Len(t, outputs, 4)
	assert.Equal(t, catalog.Carvedilol, outputs[0].TargetMedication)
	assert.Equal(t, domain.NotStarted, outputs[0].Category)
}

func TestRecommendCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	out, err := execute(t, "", "recommend", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"sglt2inhibitors"`)
}

func TestRecommendCommand_BadInput(t *testing.T) {
	_, err := execute(t, "{oops", "recommend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode input")

	_, err = execute(t, "", "recommend", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestEGFRCommand(t *testing.T) {
	out, err := execute(t, "", "egfr", "--sex", "F", "--age", "60", "--creatinine", "1.0")
	require.NoError(t, err)

	var result struct {
		Value float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.InDelta(t, 64.6, result.Value, 0.1)

	_, err = execute(t, "", "egfr", "--sex", "F", "--age", "60", "--creatinine", "0")
	require.Error(t, err)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestKCCQCommand(t *testing.T) {
	out, err := execute(t, "", "kccq", "5", "5", "5", "5", "7", "7", "5", "5", "5", "5", "5", "5", "0")
	require.NoError(t, err)

	var score domain.SymptomScore
	require.NoError(t, json.Unmarshal([]byte(out), &score))
	assert.InDelta(t, 100, score.Overall, 1e-9)

	_, err = execute(t, "", "kccq", "1", "2")
	require.Error(t, err)

	_, err = execute(t, "", "kccq", "5", "5", "5", "5", "7", "7", "5", "5", "5", "5", "5", "5", "x")
	require.Error(t, err)
	assert.True(t, domain.IsInvalidInput(err))
}

func TestMedicationsCommand(t *testing.T) {
	out, err := execute(t, "", "medications", "--class", "mineralocorticoidReceptorAntagonists")
	require.NoError(t, err)

	var meds []domain.Medication
	require.NoError(t, json.Unmarshal([]byte(out), &meds))
	require.Len(t, meds, 2)
	assert.Equal(t, catalog.Spironolactone, meds[0].Reference)

	_, err = execute(t, "", "medications", "--class", "statins")
	require.Error(t, err)
}
