package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/gameproof/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.FrameRate, convey.ShouldEqual, 30.0)
			convey.So(cfg.CorrelationThreshold, convey.ShouldEqual, 0.5)
			convey.So(cfg.StoreBackend, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.ExtractorMode, convey.ShouldEqual, config.ExtractorFrameCSV)
			convey.So(cfg.VerifyWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the threshold is out of range", func() {
			cfg.CorrelationThreshold = 1.5
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the frame rate is zero", func() {
			cfg.FrameRate = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the store backend is unknown", func() {
			cfg.StoreBackend = "sqlite"
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "sqlite")
		})

		convey.Convey("When pebble is selected without a path", func() {
			cfg.StoreBackend = config.StorePebble
			cfg.PebblePath = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When http extraction has no url", func() {
			cfg.ExtractorMode = config.ExtractorHTTP
			cfg.ExtractorURL = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the worker pool is empty", func() {
			cfg.VerifyWorkers = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
