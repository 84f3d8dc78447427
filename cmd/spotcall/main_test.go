package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBundle has two tiles 90 px apart; the last spot of tile 1 lies nearer
// tile 0's centre and is dropped as a duplicate.
const testBundle = `{
  "gene_names": ["g0", "g1", "g2"],
  "bled_codes": [
    [[1, 0], [0, 0]],
    [[0, 1], [0, 0]],
    [[0, 0], [1, 0]]
  ],
  "use_rounds": [0, 1],
  "use_channels": [0, 1],
  "color_norm_factor": [[1, 1], [1, 1]],
  "tile_origins": {"0": [0, 0, 0], "1": [0, 90, 0]},
  "tile_centre": [50, 50, 5],
  "tiles": [
    {"tile": 0, "spots": [
      {"yxz": [50, 60, 5], "colors": [[0, 2, null], [0, 0, null], [null, null, null]]},
      {"yxz": [10, 10, 5], "colors": [[0, 0, null], [0, 0, null], [null, null, null]]}
    ]},
    {"tile": 1, "spots": [
      {"yxz": [50, 10, 5], "colors": [[3, 0, null], [0, 0, null], [null, null, null]]},
      {"yxz": [50, -5, 5], "colors": [[0, 0, null], [1.5, 0, null], [null, null, null]]}
    ]}
  ]
}`

func writeBundle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(testBundle), 0o644))
	return path
}

func TestRun_CallsAndStores(t *testing.T) {
	input := writeBundle(t)
	dbPath := filepath.Join(t.TempDir(), "spots.db")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-input", input, "-db", dbPath}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "run_id: ")
	assert.Contains(t, out, "spots: 3 kept of 4")
	assert.Contains(t, out, "nearest_centre")
	assert.Regexp(t, `g0\s+1`, out)
	assert.Regexp(t, `g1\s+1`, out)
	assert.Regexp(t, `\(none\)\s+1`, out)
	assert.NotContains(t, out, "g2")

	stdout.Reset()
	require.NoError(t, run(context.Background(), []string{"-db", dbPath, "migrate", "status"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Current version: 1")
}

func TestRun_WithoutDatabase(t *testing.T) {
	input := writeBundle(t)
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-input", input}, &stdout, &stderr))
	assert.NotContains(t, stdout.String(), "run_id")
	assert.Contains(t, stdout.String(), "spots: 3 kept of 4")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "spotcall dev"))
}

func TestRun_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	ctx := context.Background()

	assert.ErrorContains(t, run(ctx, nil, &stdout, &stderr), "-input is required")
	assert.ErrorContains(t, run(ctx, []string{"migrate", "up"}, &stdout, &stderr), "requires -db")
	assert.ErrorContains(t, run(ctx, []string{"bogus"}, &stdout, &stderr), "unknown command")
	assert.Error(t, run(ctx, []string{"-input", filepath.Join(t.TempDir(), "missing.json")}, &stdout, &stderr))
	assert.Error(t, run(ctx, []string{"-input", writeBundle(t), "-config", "omp.yaml"}, &stdout, &stderr))
	assert.Error(t, run(ctx, []string{"-no-such-flag"}, &stdout, &stderr))
}

func TestRun_WaitForMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "later.json")
	err := run(context.Background(), []string{"-input", missing, "-wait", "1ms"}, &stdout, &stderr)
	assert.ErrorContains(t, err, "no file")
}

func TestBundle_NullIsNaN(t *testing.T) {
	b, err := loadBundle(writeBundle(t))
	require.NoError(t, err)
	in, src, err := b.inputs()
	require.NoError(t, err)
	assert.Equal(t, 3, in.Dictionary.NGenes())
	assert.Len(t, in.Tiles, 2)
	assert.Equal(t, [3]float64{0, 90, 0}, in.Geometry.Origins[1])
	c := src[0]
	assert.Equal(t, 2.0, c.At(0, 0, 1))
	assert.True(t, c.At(0, 2, 2) != c.At(0, 2, 2), "null decodes to NaN")
}
