package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/okian/repute/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.SnapshotCron, convey.ShouldEqual, "@hourly")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("REPUTE_ADDR", ":8080")
			_ = os.Setenv("REPUTE_QUEUE_SIZE", "500")
			_ = os.Setenv("REPUTE_WORKER_COUNT", "3")
			_ = os.Setenv("REPUTE_HISTORY_PATH", "custom.db")
			_ = os.Setenv("REPUTE_TRIM_SIGMA", "2.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.HistoryPath, convey.ShouldEqual, "custom.db")
				convey.So(cfg.TrimSigma, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 250
worker_count: 4
snapshot_bucket_minutes: 30
sources:
  payments:
    weight: 0.5
    half_life_days: 45
    min_points: 10
`
			tmpFile := createTempConfigFile(t, yamlContent)

			_ = os.Setenv("REPUTE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 250)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.SnapshotBucketMinutes, convey.ShouldEqual, 30)
				convey.So(cfg.Sources["payments"].Weight, convey.ShouldEqual, 0.5)
				convey.So(cfg.Sources["payments"].HalfLifeDays, convey.ShouldEqual, 45.0)
				convey.So(cfg.Sources["payments"].MinPointsForFullConfidence, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When env vars override the YAML file", func() {
			yamlContent := "addr: \":9090\"\nqueue_size: 250\n"
			tmpFile := createTempConfigFile(t, yamlContent)

			_ = os.Setenv("REPUTE_CONFIG", tmpFile)
			_ = os.Setenv("REPUTE_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env takes precedence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 250)
			})
		})

		convey.Convey("When the config is invalid", func() {
			_ = os.Setenv("REPUTE_QUEUE_SIZE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should report an invalid config", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("REPUTE_CONFIG", "/nonexistent/repute.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should report a load failure", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"REPUTE_CONFIG",
		"REPUTE_ADDR",
		"REPUTE_QUEUE_SIZE",
		"REPUTE_WORKER_COUNT",
		"REPUTE_HISTORY_PATH",
		"REPUTE_TRIM_SIGMA",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repute.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
