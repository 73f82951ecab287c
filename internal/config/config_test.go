package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "TRANSACTIONS", cfg.TableName)
	assert.Equal(t, EngineSQLite, cfg.StorageEngine)
	assert.Equal(t, ModeReplace, cfg.IngestMode)
	assert.Equal(t, 1000, cfg.IngestBatchSize)
}

func TestLoad_RejectsUnknownEngine(t *testing.T) {
	t.Setenv("STORAGE_ENGINE", "duckdb")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage engine")
}

func TestLoad_RejectsUnknownIngestMode(t *testing.T) {
	t.Setenv("INGEST_MODE", "merge")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported ingest mode")
}

func TestSegmentations(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want [][]string
	}{
		{"two groups", "region,experience;platform", [][]string{{"region", "experience"}, {"platform"}}},
		{"whitespace and case", " Region , Experience ", [][]string{{"region", "experience"}}},
		{"empty entries skipped", ";;platform;", [][]string{{"platform"}}},
		{"empty spec", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segmentations(tt.spec))
		})
	}
}
