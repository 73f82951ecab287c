package config

import (
	"fmt"
	"strings"

	"github.com/BarkinBalci/envconfig"
)

// Storage engine identifiers for StorageEngine.
const (
	EngineSQLite     = "sqlite"
	EngineClickHouse = "clickhouse"
)

// Ingest modes: replace truncates the table before loading, append keeps
// existing rows.
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// ClickHouse holds the optional warehouse backend connection options.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port            string `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string `envconfig:"CLICKHOUSE_DB" default:"default"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// Config is built once at process start and passed into every entry point.
// There is no global configuration state.
type Config struct {
	ServiceEnvironment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	TableName          string `envconfig:"TABLE_NAME" default:"TRANSACTIONS"`
	DatabasePath       string `envconfig:"DATABASE_PATH" default:"data/transfers.db"`
	RawDataPath        string `envconfig:"RAW_DATA_PATH" default:"data/transactions.csv"`
	TableSchemaPath    string `envconfig:"TABLE_SCHEMA_PATH" default:""`
	StorageEngine      string `envconfig:"STORAGE_ENGINE" default:"sqlite"`
	IngestMode         string `envconfig:"INGEST_MODE" default:"replace"`
	IngestBatchSize    int    `envconfig:"INGEST_BATCH_SIZE" default:"1000"`
	FunnelSegments     string `envconfig:"FUNNEL_SEGMENTS" default:"region,experience;platform"`
	FrictionSegments   string `envconfig:"FRICTION_SEGMENTS" default:"region,experience"`
	ReportOutputDir    string `envconfig:"REPORT_OUTPUT_DIR" default:"reports"`
	ClickHouse         ClickHouse
}

// Load processes the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.StorageEngine {
	case EngineSQLite, EngineClickHouse:
	default:
		return nil, fmt.Errorf("unsupported storage engine: %s (supported: sqlite, clickhouse)", cfg.StorageEngine)
	}

	switch cfg.IngestMode {
	case ModeReplace, ModeAppend:
	default:
		return nil, fmt.Errorf("unsupported ingest mode: %s (supported: replace, append)", cfg.IngestMode)
	}

	return &cfg, nil
}

// Segmentations parses a segmentation spec such as
// "region,experience;platform" into its column lists. Empty entries are
// skipped; an empty spec yields no segmentations.
func Segmentations(spec string) [][]string {
	var out [][]string
	for _, group := range strings.Split(spec, ";") {
		var cols []string
		for _, col := range strings.Split(group, ",") {
			col = strings.TrimSpace(col)
			if col != "" {
				cols = append(cols, strings.ToLower(col))
			}
		}
		if len(cols) > 0 {
			out = append(out, cols)
		}
	}
	return out
}
