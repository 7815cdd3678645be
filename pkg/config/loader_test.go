package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type dispatchConfig struct {
	SendTimeout time.Duration `env:"TEST_DISPATCH_SEND_TIMEOUT" envDefault:"15s"`
	RetryBudget time.Duration `env:"TEST_DISPATCH_RETRY_BUDGET" envDefault:"10m"`
	MaxAttempts int           `env:"TEST_DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
}

type queueConfig struct {
	TTL   time.Duration `env:"TEST_QUEUE_TTL" envDefault:"1h"`
	Limit int           `env:"TEST_QUEUE_LIMIT" envDefault:"100"`
}

type topicsConfig struct {
	Defaults []string `env:"TEST_DEFAULT_TOPICS" envSeparator:"," envDefault:"notifications"`
}

type requiredConfig struct {
	GatewayURL string `env:"TEST_SMS_GATEWAY_URL,required"`
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_DISPATCH_SEND_TIMEOUT", "5s")
	t.Setenv("TEST_DISPATCH_MAX_ATTEMPTS", "5")
	config.ResetCache()

	var cfg dispatchConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, 5*time.Second, cfg.SendTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RetryBudget, "untouched field keeps its default")
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestLoad_Defaults(t *testing.T) {
	config.ResetCache()

	var cfg queueConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, time.Hour, cfg.TTL)
	assert.Equal(t, 100, cfg.Limit)
}

func TestLoad_SliceSeparator(t *testing.T) {
	t.Setenv("TEST_DEFAULT_TOPICS", "notifications,alerts,billing")
	config.ResetCache()

	var cfg topicsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, []string{"notifications", "alerts", "billing"}, cfg.Defaults)
}

func TestLoad_RequiredMissing(t *testing.T) {
	config.ResetCache()

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *queueConfig
	err := config.Load(cfg)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoad_CachesPerType(t *testing.T) {
	t.Setenv("TEST_QUEUE_LIMIT", "50")
	config.ResetCache()

	var first queueConfig
	require.NoError(t, config.Load(&first))
	require.Equal(t, 50, first.Limit)

	// Env changes after the first load are invisible without a reload.
	t.Setenv("TEST_QUEUE_LIMIT", "75")
	var second queueConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, 50, second.Limit)

	require.NoError(t, config.ForceReloadConfig(&second))
	assert.Equal(t, 75, second.Limit)

	// The forced reload refreshes the cache for everyone.
	var third queueConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, 75, third.Limit)
}

type fileOnlyConfig struct {
	Heartbeat time.Duration `env:"TEST_FILE_HEARTBEAT" envDefault:"30s"`
}

func TestLoadEnv_File(t *testing.T) {
	require.NoError(t, config.LoadEnv("testdata/.env.test"))
	config.ResetCache()

	var cfg fileOnlyConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 45*time.Second, cfg.Heartbeat)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv("testdata/does-not-exist.env")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}
