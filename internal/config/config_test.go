package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func writeCredentials(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dl.cfg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCredentials(t *testing.T) {
	path := writeCredentials(t, "[AWS]\nAWS_ACCESS_KEY_ID = AKIAEXAMPLE\nAWS_SECRET_ACCESS_KEY = s3cr3t\n")

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "s3cr3t"}, creds)
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.cfg"))
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, creds)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SONGLAKE_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "absent.cfg"))
	t.Setenv("SONGLAKE_INPUT", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3a://udacity-dend/", cfg.Input)
	assert.Equal(t, "song_data/*/*/*/*.json", cfg.SongPattern)
	assert.Equal(t, "log_data/*/*/*-events.json", cfg.LogPattern)
	assert.Equal(t, "", cfg.AWS.AccessKeyID)
}

func TestEnvironmentOverridesCredentialsFile(t *testing.T) {
	path := writeCredentials(t, "[AWS]\nAWS_ACCESS_KEY_ID = from-file\nAWS_SECRET_ACCESS_KEY = file-secret\n")
	t.Setenv("SONGLAKE_CREDENTIALS_FILE", path)
	t.Setenv("AWS_ACCESS_KEY_ID", "from-env")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("SONGLAKE_OUTPUT", "s3a://lake/output/")
	t.Setenv("AWS_S3_FORCE_PATH_STYLE", "yes")
	t.Setenv("SNOWFLAKE_NODE", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AWS.AccessKeyID)
	assert.Equal(t, "file-secret", cfg.AWS.SecretAccessKey)
	assert.Equal(t, "s3a://lake/output/", cfg.Output)
	assert.True(t, cfg.AWS.ForcePathStyle)
	assert.Equal(t, int64(12), cfg.SnowflakeNode)
}

func TestINICodecDecodesSections(t *testing.T) {
	out := map[string]any{}
	err := iniCodec{}.Decode([]byte("region = us-west-2\n\n[AWS]\nAWS_ACCESS_KEY_ID = k\n\n[extra]\nname = v\n"), out)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", out["region"])
	assert.Equal(t, map[string]any{"aws_access_key_id": "k"}, out["aws"])
	assert.Equal(t, map[string]any{"name": "v"}, out["extra"])
}

func TestLoadReadsCredentialsFile(t *testing.T) {
	path := writeCredentials(t, "[AWS]\nAWS_ACCESS_KEY_ID = k\nAWS_SECRET_ACCESS_KEY = s\n")
	t.Setenv("SONGLAKE_CREDENTIALS_FILE", path)
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.AWS.AccessKeyID)
	assert.Equal(t, "s", cfg.AWS.SecretAccessKey)
}

func TestModuleSuppliesLoadedConfig(t *testing.T) {
	t.Setenv("SONGLAKE_INPUT", "s3a://from-env/")

	var got Config
	app := fxtest.New(t,
		Module(Config{AppName: "songlake", Input: "/data/in"}),
		fx.Populate(&got),
	)
	app.RequireStart().RequireStop()
	assert.Equal(t, "/data/in", got.Input)
}
