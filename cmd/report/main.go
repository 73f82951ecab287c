package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/keithsngth/wise-funnel-analysis/internal/config"
	"github.com/keithsngth/wise-funnel-analysis/internal/ingest"
	"github.com/keithsngth/wise-funnel-analysis/internal/logger"
	"github.com/keithsngth/wise-funnel-analysis/internal/report"
	"github.com/keithsngth/wise-funnel-analysis/internal/service"
	"github.com/keithsngth/wise-funnel-analysis/internal/store"
	"github.com/keithsngth/wise-funnel-analysis/internal/store/clickhouse"
	"github.com/keithsngth/wise-funnel-analysis/internal/store/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.ServiceEnvironment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting funnel analysis run",
		zap.String("environment", cfg.ServiceEnvironment),
		zap.String("engine", cfg.StorageEngine),
		zap.String("table", cfg.TableName))

	ctx := context.Background()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open event store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close event store", zap.Error(err))
		}
	}()

	if err := st.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	if err := st.Ping(ctx); err != nil {
		log.Fatal("Event store is unreachable", zap.Error(err))
	}

	// Load the raw CSV batch
	loader := ingest.NewLoader(st, ingest.Config{
		BatchSize: cfg.IngestBatchSize,
		Replace:   cfg.IngestMode == config.ModeReplace,
	}, log)

	summary, err := loader.LoadCSV(ctx, cfg.RawDataPath)
	if err != nil {
		log.Fatal("Failed to load raw data", zap.Error(err), zap.String("path", cfg.RawDataPath))
	}
	log.Info("Raw data loaded",
		zap.Int("rows_loaded", summary.RowsLoaded),
		zap.Int("rows_read", summary.RowsRead))

	if err := os.MkdirAll(cfg.ReportOutputDir, 0o755); err != nil {
		log.Fatal("Failed to create report output directory", zap.Error(err))
	}

	svc := service.NewReportService(st, log)

	// The overall funnel plus one report per configured segmentation.
	funnelSegmentations := append([][]string{nil}, config.Segmentations(cfg.FunnelSegments)...)
	for _, segmentBy := range funnelSegmentations {
		rows, err := svc.FunnelReport(ctx, segmentBy)
		if err != nil {
			log.Fatal("Funnel report failed", zap.Error(err), zap.Strings("segment_by", segmentBy))
		}

		title := fmt.Sprintf("Funnel — %s", segmentTitle(segmentBy))
		report.RenderFunnel(os.Stdout, title, segmentBy, rows)

		path := filepath.Join(cfg.ReportOutputDir, "funnel_"+segmentSlug(segmentBy)+".csv")
		if err := report.WriteFunnelCSV(path, segmentBy, rows); err != nil {
			log.Fatal("Failed to write funnel CSV", zap.Error(err), zap.String("path", path))
		}
	}

	for _, segmentBy := range config.Segmentations(cfg.FrictionSegments) {
		rows, err := svc.FrictionReport(ctx, segmentBy)
		if err != nil {
			log.Fatal("Friction report failed", zap.Error(err), zap.Strings("segment_by", segmentBy))
		}

		title := fmt.Sprintf("Friction — %s", segmentTitle(segmentBy))
		report.RenderFriction(os.Stdout, title, segmentBy, rows)

		path := filepath.Join(cfg.ReportOutputDir, "friction_"+segmentSlug(segmentBy)+".csv")
		if err := report.WriteFrictionCSV(path, segmentBy, rows); err != nil {
			log.Fatal("Failed to write friction CSV", zap.Error(err), zap.String("path", path))
		}
	}

	log.Info("Funnel analysis run complete", zap.String("output_dir", cfg.ReportOutputDir))
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.EventStore, error) {
	switch cfg.StorageEngine {
	case config.EngineClickHouse:
		client, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			return nil, err
		}
		return clickhouse.NewStore(client, cfg.TableName, cfg.TableSchemaPath, log)
	default:
		return sqlite.Open(cfg.DatabasePath, cfg.TableName, cfg.TableSchemaPath, log)
	}
}

func segmentTitle(segmentBy []string) string {
	if len(segmentBy) == 0 {
		return "overall"
	}
	return strings.Join(segmentBy, " × ")
}

func segmentSlug(segmentBy []string) string {
	if len(segmentBy) == 0 {
		return "overall"
	}
	return strings.Join(segmentBy, "_")
}
