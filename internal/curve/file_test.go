package curve_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/curve"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadProfiles(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  quiet:
    points:
      - [40, 0]
      - [60, 40]
      - [85, 100]
    floor: 40
    hysteresis: 5
  full:
    points:
      - [0, 0]
      - [100, 250]
    min_output: 10
    max_output: 250
`)

	profiles, err := curve.LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	quiet, err := profiles.Resolve("quiet")
	require.NoError(t, err)
	assert.Len(t, quiet.Points, 3)
	assert.InDelta(t, 40, quiet.Points[0].Input, 0.001)
	assert.InDelta(t, 100, quiet.Points[2].Output, 0.001)
	assert.InDelta(t, 40, quiet.Floor, 0.001)
	assert.InDelta(t, 5, quiet.Hysteresis, 0.001)
	// Omitted max_output falls back to 100.
	assert.InDelta(t, 100, quiet.MaxOutput, 0.001)

	full, err := profiles.Resolve("full")
	require.NoError(t, err)
	assert.InDelta(t, 10, full.MinOutput, 0.001)
	assert.InDelta(t, 250, full.MaxOutput, 0.001)

	// Loaded profiles layer over the built-ins.
	merged := curve.FanProfiles().Merge(profiles)
	_, err = merged.Resolve("quiet")
	assert.NoError(t, err)
	_, err = merged.Resolve("silent")
	assert.NoError(t, err)
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := curve.LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, curve.ErrProfileLoadFailed))
}

func TestLoadProfilesMalformedYAML(t *testing.T) {
	path := writeProfiles(t, "profiles: [not: a: map\n")

	_, err := curve.LoadProfiles(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, curve.ErrProfileLoadFailed))
}

func TestLoadProfilesRejectsInvalidCurve(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  good:
    points:
      - [40, 0]
      - [80, 100]
  broken:
    points:
      - [80, 100]
      - [40, 0]
`)

	_, err := curve.LoadProfiles(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, curve.ErrProfileLoadFailed))
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadProfilesEmpty(t *testing.T) {
	path := writeProfiles(t, "profiles: {}\n")

	_, err := curve.LoadProfiles(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, curve.ErrProfileLoadFailed))
}
