package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsio/wsio/internal/errs"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.Listen)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log:
  level: debug
database:
  driver: mysql
  uri: "wsio:wsio@tcp(localhost:3306)/wsio?parseTime=true"
search:
  nodes:
    - http://es1:9200
    - http://es2:9200
auth:
  jwt_secret: file-secret
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Search.Nodes)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WSIO_LISTEN", ":7000")
	t.Setenv("WSIO_DATABASE_URI", "postgres://env@db/wsio")
	t.Setenv("WSIO_JWT_SECRET", "env-secret")
	t.Setenv("WSIO_ES_NODES", `["http://env-es:9200"]`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "postgres://env@db/wsio", cfg.Database.URI)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"http://env-es:9200"}, cfg.Search.Nodes)
}

func TestLoad_BadESNodes(t *testing.T) {
	t.Setenv("WSIO_ES_NODES", "not-json")

	_, err := Load("")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "s"
	assert.NoError(t, cfg.Validate())

	bad := Default()
	bad.Database.Driver = "sqlite"
	assert.True(t, errs.IsInvalidInput(bad.Validate()))

	bad = Default()
	bad.Auth.JWTSecret = ""
	assert.True(t, errs.IsInvalidInput(bad.Validate()))
}
