package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
storage:
  mongodb:
    uri: mongodb://localhost:27017
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 8443, cfg.Server.Port)
	require.Equal(t, "wus", cfg.Storage.MongoDB.Database)
	require.Equal(t, "exchanges", cfg.Storage.MongoDB.Collection)
	require.Equal(t, "file", cfg.Keys.Mode)
	require.Equal(t, 5*time.Minute, cfg.Security.TimestampTTL)
	require.Equal(t, 30*time.Second, cfg.Security.ClockSkew)
	require.Equal(t, 5*time.Minute, cfg.Correlation.DefaultTTL)
	require.Equal(t, 30*time.Second, cfg.Correlation.SweepInterval)
	require.Equal(t, "/metrics", cfg.Metrics.Metrics.Path)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9443
  tls:
    certFile: /etc/ssl/gateway.crt
    keyFile: /etc/ssl/gateway.key
    clientCAFile: /etc/ssl/pkio-roots.pem
storage:
  mongodb:
    uri: mongodb://db.example.nl:27017
    database: gateway
    collection: journal
keys:
  mode: file
  file:
    certFile: /etc/keys/signing.crt
    keyFile: /etc/keys/signing.key
    trustAnchorFile: /etc/keys/anchors.pem
security:
  timestampTTL: 2m
  clockSkew: 10s
correlation:
  defaultTTL: 90s
endpoints:
  - name: belastingdienst
    url: https://wus.belastingdienst.example.nl/wus
    profile: "Digikoppeling 2W-be-S"
  - name: kvk
    url: https://wus.kvk.example.nl/wus
    profile: "Digikoppeling 2W-be-SE"
`))
	require.NoError(t, err)

	require.Equal(t, 9443, cfg.Server.Port)
	require.Equal(t, "/etc/ssl/pkio-roots.pem", cfg.Server.TLS.ClientCAFile)
	require.Equal(t, "journal", cfg.Storage.MongoDB.Collection)
	require.Equal(t, 2*time.Minute, cfg.Security.TimestampTTL)
	require.Equal(t, 10*time.Second, cfg.Security.ClockSkew)
	require.Equal(t, 90*time.Second, cfg.Correlation.DefaultTTL)
	require.Len(t, cfg.Endpoints, 2)

	ep, ok := cfg.EndpointByName("kvk")
	require.True(t, ok)
	require.Equal(t, "Digikoppeling 2W-be-SE", ep.Profile)

	_, ok = cfg.EndpointByName("unknown")
	require.False(t, ok)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_MONGODB_URI", "mongodb://secret.example.nl:27017")
	t.Setenv("TEST_HSM_PIN", "123456")

	cfg, err := Load(writeConfig(t, `
storage:
  mongodb:
    uri: ${TEST_MONGODB_URI}
keys:
  mode: pkcs11
  pkcs11:
    modulePath: /usr/lib/softhsm/libsofthsm2.so
    pin: ${TEST_HSM_PIN}
`))
	require.NoError(t, err)
	require.Equal(t, "mongodb://secret.example.nl:27017", cfg.Storage.MongoDB.URI)
	require.Equal(t, "123456", cfg.Keys.PKCS11.PIN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "storage: [unbalanced"))
	require.Error(t, err)
}

func TestValidateRequiresMongoURI(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 8443\n"))
	require.ErrorContains(t, err, "storage.mongodb.uri is required")
}

func TestValidateRejectsUnknownKeyMode(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
keys:
  mode: vault
`))
	require.ErrorContains(t, err, "keys.mode")
}

func TestValidatePKCS11RequiresModulePath(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
keys:
  mode: pkcs11
`))
	require.ErrorContains(t, err, "modulePath")
}

func TestValidateEndpoints(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
endpoints:
  - name: a
    url: https://a.example.nl/wus
    profile: "Digikoppeling 2W-be"
  - name: a
    url: https://b.example.nl/wus
    profile: "Digikoppeling 2W-be"
`))
	require.ErrorContains(t, err, "duplicate endpoint name")

	_, err = Load(writeConfig(t, minimalConfig+`
endpoints:
  - name: a
    url: https://a.example.nl/wus
`))
	require.ErrorContains(t, err, "profile is required")
}
