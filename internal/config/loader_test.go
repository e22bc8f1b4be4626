package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/gameproof/internal/config"
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
				convey.So(cfg.FrameRate, convey.ShouldEqual, 30.0)
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GAMEPROOF_ADDR", ":8080")
			_ = os.Setenv("GAMEPROOF_CORRELATION_THRESHOLD", "0.7")
			_ = os.Setenv("GAMEPROOF_VERIFY_WORKERS", "16")
			_ = os.Setenv("GAMEPROOF_STORE_BACKEND", "redis")
			_ = os.Setenv("GAMEPROOF_ISSUE_TOKENS", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CorrelationThreshold, convey.ShouldEqual, 0.7)
				convey.So(cfg.VerifyWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.IssueTokens, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
frame_rate: 60
store_backend: pebble
pebble_path: /tmp/gameproof
extractor_mode: http
extractor_url: http://model:8500/extract
verify_queue_size: 10
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("GAMEPROOF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.FrameRate, convey.ShouldEqual, 60.0)
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "pebble")
				convey.So(cfg.PebblePath, convey.ShouldEqual, "/tmp/gameproof")
				convey.So(cfg.ExtractorMode, convey.ShouldEqual, "http")
				convey.So(cfg.ExtractorURL, convey.ShouldEqual, "http://model:8500/extract")
				convey.So(cfg.VerifyQueueSize, convey.ShouldEqual, 10)
				// untouched keys keep defaults
				convey.So(cfg.CorrelationThreshold, convey.ShouldEqual, 0.5)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
verify_workers: 24
max_leaderboard_limit: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("GAMEPROOF_CONFIG", tmpFile)
			_ = os.Setenv("GAMEPROOF_ADDR", ":8080")
			_ = os.Setenv("GAMEPROOF_VERIFY_WORKERS", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")           // env
				convey.So(cfg.VerifyWorkers, convey.ShouldEqual, 32)       // env
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50) // file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("GAMEPROOF_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("GAMEPROOF_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("GAMEPROOF_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("GAMEPROOF_VERIFY_WORKERS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown extractor mode", func() {
			_ = os.Setenv("GAMEPROOF_EXTRACTOR_MODE", "magic")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"GAMEPROOF_CONFIG",
		"GAMEPROOF_ADDR",
		"GAMEPROOF_CORRELATION_THRESHOLD",
		"GAMEPROOF_VERIFY_WORKERS",
		"GAMEPROOF_STORE_BACKEND",
		"GAMEPROOF_ISSUE_TOKENS",
		"GAMEPROOF_EXTRACTOR_MODE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "gameproof-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
