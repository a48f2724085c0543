package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	internal "github.com/sagarreddypatil/nlp-discord-chatbot/chatbot"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	viper.Reset()
	// empty values are ignored by viper
	for _, key := range []string{"DISCORD_KEY", "NAME", "GENDER"} {
		suite.T().Setenv(key, "")
	}

	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		_ = os.Chdir(suite.origDir)
	}
	viper.Reset()
}

func (suite *ConfigTestSuite) writeConfig(name, content string) string {
	path := filepath.Join(suite.tempDir, name)
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultBotName, cfg.Bot.Name)
	assert.Equal(suite.T(), internal.DefaultBotGender, cfg.Bot.Gender)
	assert.Equal(suite.T(), "facebook/blenderbot-400M-distill", cfg.Model.Name)
	assert.Equal(suite.T(), "remote", cfg.Model.Backend)
	assert.Equal(suite.T(), 30*time.Second, cfg.Model.HealthInterval)
	assert.Equal(suite.T(), 1, cfg.Sessions.Workers)
	assert.Equal(suite.T(), internal.DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(suite.T(), 3*time.Second, cfg.RateLimit.RefillRate)
	assert.Nil(suite.T(), cfg.Generation.DoSample)
	assert.Zero(suite.T(), cfg.Generation.NumBeams)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	path := suite.writeConfig("config.yaml", `
bot:
  name: Max
  gender: man
model:
  name: microsoft/DialoGPT-medium
  backend: gguf
  gguf:
    model_path: /models/dialogpt.gguf
    pool_size: 2
generation:
  temperature: 0.7
  do_sample: false
sessions:
  workers: 2
rate_limit:
  refill_rate: 10s
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "Max", cfg.Bot.Name)
	assert.Equal(suite.T(), "man", cfg.Bot.Gender)
	assert.Equal(suite.T(), "gguf", cfg.Model.Backend)
	assert.Equal(suite.T(), "/models/dialogpt.gguf", cfg.Model.GGUF.ModelPath)
	assert.Equal(suite.T(), 2, cfg.Model.GGUF.PoolSize)
	assert.InDelta(suite.T(), 0.7, cfg.Generation.Temperature, 1e-6)
	require.NotNil(suite.T(), cfg.Generation.DoSample)
	assert.False(suite.T(), *cfg.Generation.DoSample)
	assert.Equal(suite.T(), 2, cfg.Sessions.Workers)
	assert.Equal(suite.T(), 10*time.Second, cfg.RateLimit.RefillRate)
}

func (suite *ConfigTestSuite) TestLegacyEnvironmentVariables() {
	suite.T().Setenv("DISCORD_KEY", "secret-token")
	suite.T().Setenv("NAME", "Robin")
	suite.T().Setenv("GENDER", "robot")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "secret-token", cfg.Discord.Token)
	assert.Equal(suite.T(), "Robin", cfg.Bot.Name)
	assert.Equal(suite.T(), "robot", cfg.Bot.Gender)
}

func (suite *ConfigTestSuite) TestPrefixedEnvironmentVariables() {
	suite.T().Setenv("NLPBOT_BOT_NAME", "Quinn")
	suite.T().Setenv("NLPBOT_SESSIONS_WORKERS", "3")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "Quinn", cfg.Bot.Name)
	assert.Equal(suite.T(), 3, cfg.Sessions.Workers)
}

func (suite *ConfigTestSuite) TestLoadConfigInvalidFile() {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigMalformedFile() {
	path := suite.writeConfig("malformed.yaml", `
bot:
  name: Jane
  invalid_yaml: [unclosed bracket
`)

	cfg, err := LoadConfig(path)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), cfg)
}

func (suite *ConfigTestSuite) TestLoadConfigRejectsUnknownBackend() {
	path := suite.writeConfig("config.yaml", `
model:
  backend: onnx
`)

	_, err := LoadConfig(path)
	assert.ErrorContains(suite.T(), err, "model.backend")
}

func (suite *ConfigTestSuite) TestAppConfigGlobal() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), cfg.Bot.Name, AppConfig.Bot.Name)
}

func TestValidate(t *testing.T) {
	base := Config{
		Model:    ModelConfig{Backend: "remote"},
		Sessions: SessionsConfig{Workers: 1},
	}
	assert.NoError(t, base.Validate())

	bad := base
	bad.Model.Family = "encoder"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Sessions.Workers = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Generation.TopP = 1.5
	assert.Error(t, bad.Validate())
}

// BenchmarkLoadConfig benchmarks config loading performance
func BenchmarkLoadConfig(b *testing.B) {
	for b.Loop() {
		viper.Reset()
		if _, err := LoadConfig(""); err != nil {
			b.Fatal(err)
		}
	}
}
