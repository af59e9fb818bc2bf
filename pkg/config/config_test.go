package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	engine, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), engine)
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
ridingTimeMargin: 0.2
delayUpdateInterval: 2m
officialHolidays:
  - 2013-12-25
`), 0o644))

	engine, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 0.2, engine.RidingTimeMargin)
	assert.Equal(t, 2*time.Minute, engine.DelayUpdateInterval)
	assert.Equal(t, []string{"2013-12-25"}, engine.OfficialHolidays)
	assert.Equal(t, 3*time.Second, engine.IntervalBetweenUpdateMessages)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yml")
	require.NoError(t, os.WriteFile(path, []byte("ridingTimeMargin: 0\nofficialHolidays: [christmas]\n"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

	assert.Error(t, err)
}
