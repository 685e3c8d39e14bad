package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/meeting-engine/meeting"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileIsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "Asia/Jerusalem", cfg.Location().String())
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	// GIVEN: a file that sets only a few keys
	path := writeFile(t, "meetingd.yaml", `
listen: ":9000"
window:
  hard_max_days: 5
sources:
  timeouts:
    legacy: 3s
  trip_after: 2
rates:
  usd: 3.5
locations:
  - id: "9"
    name: Jerusalem Office
cache:
  backend: REDIS
  redis_addr: localhost:6379
`)

	// WHEN
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN: set keys are kept, the rest defaulted, soft clamped to hard
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "./data/meetings.db", cfg.DB)
	assert.Equal(t, 5, cfg.Window.HardMaxDays)
	assert.Equal(t, 5, cfg.Window.SoftMaxDays)
	assert.Equal(t, 3*time.Second, cfg.Sources.Timeouts["legacy"])
	assert.Equal(t, []string{"legacy"}, cfg.Sources.CostSensitive)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.NoError(t, cfg.Validate())

	// AND: engine tunables are typed
	ec := cfg.Engine()
	assert.Equal(t, 3*time.Second, ec.SourceTimeouts[meeting.SourceLegacy])
	assert.Equal(t, []meeting.SourceKind{meeting.SourceLegacy}, ec.CostSensitive)
	assert.Equal(t, 2, ec.TripAfter)

	// AND: lookup carries the extra location and the rate override
	lookup := cfg.Lookup()
	assert.Equal(t, "Jerusalem Office", lookup.Location("9", "", "").Name)
	assert.Equal(t, "Online", lookup.Location("2", "", "").Name)
	assert.Equal(t, "3.5", lookup.Rates()["USD"].String())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "listen: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources.Timeouts["crm"] = time.Second
	cfg.Sources.CostSensitive = []string{"legacy", "archive"}
	cfg.Log.Level = "verbose"
	cfg.ICS = []ICSConfig{{ID: "team"}}
	cfg.Cache.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{`"crm"`, `"archive"`, "log.level", "ics[0]", "redis_addr"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadSecrets_EnvWinsOverFile(t *testing.T) {
	// GIVEN: JWT_SECRET in the environment, SENDGRID_API_KEY only in the file
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SENDGRID_API_KEY", "")
	require.NoError(t, os.Unsetenv("SENDGRID_API_KEY"))
	path := writeFile(t, ".env", "JWT_SECRET=from-file\nSENDGRID_API_KEY=sg-key\n")

	// WHEN
	s := LoadSecrets(path, filepath.Join(t.TempDir(), "missing.env"))

	// THEN
	assert.Equal(t, "from-env", s.JWTSecret)
	assert.Equal(t, "sg-key", s.SendGridAPIKey)
}
