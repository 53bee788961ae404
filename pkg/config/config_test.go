package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/json2avro/pkg/pipeline"
	"github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

const pipelineYAML = `
log:
  level: debug
metrics:
  enabled: false
pipeline:
  peers:
  - name: in
    connector: kafka
    config:
      brokers: ["b1:9092"]
      source:
        group: g
        topics: ["orders"]
  - name: out
    connector: debug
  pipelines:
  - name: orders
    onError: halt
    sources:
    - name: in
    transformations:
    - type: json2avro
      config:
        schemaFile: /etc/json2avro/orders.avsc
        format: single
    sinks:
    - name: out
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "json2avro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, pipelineYAML)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr, "default kept")

	require.Len(t, cfg.Pipeline.Peers, 2)
	assert.Equal(t, "kafka", cfg.Pipeline.Peers[0].ConnectorName)
	assert.Equal(t, []any{"b1:9092"}, cfg.Pipeline.Peers[0].Config["brokers"])

	require.Len(t, cfg.Pipeline.Pipelines, 1)
	pl := cfg.Pipeline.Pipelines[0]
	assert.Equal(t, pipeline.OnErrorHalt, pl.OnError)
	require.Len(t, pl.Transformations, 1)
	assert.Equal(t, transform.TypeJSONToAvro, pl.Transformations[0].Type)

	tc, err := pl.Transformations[0].ToConfig()
	require.NoError(t, err)
	avroConfig, ok := tc.(*transform.JSONToAvroConfig)
	require.True(t, ok)
	assert.Equal(t, "/etc/json2avro/orders.avsc", avroConfig.SchemaFile)
	assert.Equal(t, "single", avroConfig.Format)

	assert.NoError(t, cfg.Pipeline.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, pipelineYAML)
	t.Setenv("JSON2AVRO_METRICS_ADDR", ":9999")
	t.Setenv("JSON2AVRO_LOG_LEVEL", "warn")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.Pipeline.Peers)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(viper.New(), writeConfig(t, "pipeline: [unclosed"))
	assert.Error(t, err)

	_, err = Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
