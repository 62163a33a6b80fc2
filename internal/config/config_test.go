package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/workdays"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, Dir)
	os.MkdirAll(cfgDir, 0755)

	os.WriteFile(filepath.Join(cfgDir, "config"), []byte(`
[server]
http_addr = ":8181"

[storage]
driver = "redis"
redis_addrs = ["localhost:6379"]
namespace = "foi"

[calendar]
czech_holidays = false
holidays = ["2024-03-18"]
cache_minutes = 0

[log]
level = "debug"
development = true
`), 0644)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.Server.HTTPAddr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Storage.RedisAddrs)
	assert.Equal(t, "foi", cfg.Storage.Namespace)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 1000, cfg.Wizard.MaxSteps)

	cal, err := cfg.WorkdayCalendar()
	require.NoError(t, err)
	assert.IsType(t, &workdays.Calendar{}, cal)
	// Friday 2024-03-15 to Tuesday 2024-03-19 skips the weekend and the holiday.
	assert.Equal(t, 1, cal.Between(domain.Date(2024, 3, 15), domain.Date(2024, 3, 19)))
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(Dir, "inforequest.db"), cfg.Storage.DSN)
	assert.True(t, cfg.Calendar.CzechHolidays)
	assert.Equal(t, "info", cfg.Log.Level)

	cal, err := cfg.WorkdayCalendar()
	require.NoError(t, err)
	assert.IsType(t, &workdays.Cached{}, cal)
	// Easter Monday 2024 is April 1st.
	assert.Equal(t, 1, cal.Between(domain.Date(2024, 3, 29), domain.Date(2024, 4, 2)))
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"unknown driver": "[storage]\ndriver = \"postgres\"\n",
		"redis no addrs": "[storage]\ndriver = \"redis\"\n",
		"bad holiday":    "[calendar]\nholidays = [\"18.3.2024\"]\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}
