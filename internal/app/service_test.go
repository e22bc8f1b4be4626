package service_test

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gameproof/internal/adapters/mq/worker"
	"github.com/okian/gameproof/internal/adapters/repository"
	service "github.com/okian/gameproof/internal/app"
	"github.com/okian/gameproof/internal/config"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	fixtureSeedHex = "ec9e7f2d8174e6d0f5a1ea964353d87bf8953bc4c4e5f3c3c13bd7c87c02651e"
	fixturePubHex  = "35ba41672548c10842085669f928e338cb2831f7598b4d54654948ddffb2496c"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.VerifyWorkers = 2
	cfg.VerifyQueueSize = 16
	cfg.AttestorKey = fixtureSeedHex
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service without configuration", t, func() {
		svc := service.New(nil)

		Convey("Then it should report defaults and not be started", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["storeBackend"], ShouldEqual, config.StoreMemory)
			So(svc.Signer(), ShouldBeNil)
		})

		Convey("Then operations fail until it is started", func() {
			ctx := context.Background()
			So(errors.Is(svc.Upload(ctx, 1, model.BlobVideo, []byte("x")), worker.ErrStopped), ShouldBeTrue)
			_, err := svc.Verify(ctx, 1)
			So(errors.Is(err, worker.ErrStopped), ShouldBeTrue)
			_, err = svc.TopN(ctx, 1)
			So(err, ShouldNotBeNil)
			_, err = svc.Rank(ctx, 1)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(testConfig())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Ensure service is stopped after test
		defer svc.Stop(ctx)

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["pendingSubmissions"], ShouldEqual, 0)
				So(stats["rankedPlayers"], ShouldEqual, 0)
				So(stats, ShouldContainKey, "pool")
			})

			Convey("And it should sign with the configured key", func() {
				So(hex.EncodeToString(svc.Signer().PublicKey()), ShouldEqual, fixturePubHex)
				So(svc.GetStats()["keyId"], ShouldEqual, svc.Signer().KeyID())
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(testConfig())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop(ctx)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And verifications are refused", func() {
				_, err := svc.Verify(ctx, 1)
				So(errors.Is(err, worker.ErrStopped), ShouldBeTrue)
			})

			Convey("And stopping again is harmless", func() {
				So(func() { svc.Stop(ctx) }, ShouldNotPanic)
			})
		})
	})
}

func TestService_Keys(t *testing.T) {
	Convey("Given attestor key settings", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When the seed is read from a file", func() {
			path := filepath.Join(t.TempDir(), "seed")
			So(os.WriteFile(path, []byte(fixtureSeedHex+"\n"), 0o600), ShouldBeNil)
			cfg := testConfig()
			cfg.AttestorKey = ""
			cfg.AttestorKeyFile = path

			svc := service.New(cfg)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)
			So(hex.EncodeToString(svc.Signer().PublicKey()), ShouldEqual, fixturePubHex)
		})

		Convey("When no key is configured a fresh one is generated", func() {
			cfg := testConfig()
			cfg.AttestorKey = ""
			svc := service.New(cfg)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)
			So(svc.Signer(), ShouldNotBeNil)
			So(hex.EncodeToString(svc.Signer().PublicKey()), ShouldNotEqual, fixturePubHex)
		})

		Convey("When the seed is malformed", func() {
			cfg := testConfig()
			cfg.AttestorKey = "not-a-seed"
			svc := service.New(cfg)
			So(svc.Start(ctx), ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Backends(t *testing.T) {
	Convey("Given a store backend setting", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is unknown", func() {
			cfg := testConfig()
			cfg.StoreBackend = "tape"
			err := service.New(cfg).Start(ctx)
			So(errors.Is(err, repository.ErrUnknownBackend), ShouldBeTrue)
		})

		Convey("When redis is configured but unreachable", func() {
			cfg := testConfig()
			cfg.StoreBackend = config.StoreRedis
			cfg.RedisAddr = "127.0.0.1:1"
			So(service.New(cfg).Start(ctx), ShouldNotBeNil)
		})

		Convey("When pebble is configured", func() {
			cfg := testConfig()
			cfg.StoreBackend = config.StorePebble
			cfg.PebblePath = filepath.Join(t.TempDir(), "subs")
			svc := service.New(cfg)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)
			So(svc.GetStats()["storeBackend"], ShouldEqual, config.StorePebble)
		})
	})
}
