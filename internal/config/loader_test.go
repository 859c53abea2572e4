package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/kayfabe/internal/config"
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
				convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.CommitEvery, convey.ShouldEqual, 1000)
				convey.So(cfg.EventModifiers, convey.ShouldHaveLength, 5)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("KAYFABE_ADDR", ":8080")
			_ = os.Setenv("KAYFABE_DB_DRIVER", "postgres")
			_ = os.Setenv("KAYFABE_DB_DSN", "postgres://kayfabe@localhost/kayfabe?sslmode=disable")
			_ = os.Setenv("KAYFABE_COMMIT_EVERY", "250")
			_ = os.Setenv("KAYFABE_BASELINE_SCORE", "3000")
			_ = os.Setenv("KAYFABE_REPLAY_ON_START", "true")
			_ = os.Setenv("KAYFABE_CORS_ORIGINS", "https://a.example,https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DBDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.CommitEvery, convey.ShouldEqual, 250)
				convey.So(cfg.BaselineScore, convey.ShouldEqual, 3000)
				convey.So(cfg.ReplayOnStart, convey.ShouldBeTrue)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
commit_every: 500
rank_months: 6
replay_schedule: "0 4 * * *"
event_modifiers:
  pay per view: 20
  tv-show: 5
resolution_penalties:
  dq: 2
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KAYFABE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.CommitEvery, convey.ShouldEqual, 500)
				convey.So(cfg.RankMonths, convey.ShouldEqual, 6)
				convey.So(cfg.ReplaySchedule, convey.ShouldEqual, "0 4 * * *")
			})

			convey.Convey("Then file maps should replace the default tables", func() {
				convey.So(cfg.EventModifiers, convey.ShouldResemble, map[string]float64{"pay per view": 20, "tv-show": 5})
				convey.So(cfg.ResolutionPenalties, convey.ShouldResemble, map[string]float64{"dq": 2})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
commit_every: 500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KAYFABE_CONFIG", tmpFile)
			_ = os.Setenv("KAYFABE_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")  // Overridden by env
				convey.So(cfg.CommitEvery, convey.ShouldEqual, 500) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("KAYFABE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("KAYFABE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("KAYFABE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("KAYFABE_COMMIT_EVERY", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"KAYFABE_CONFIG",
		"KAYFABE_ADDR",
		"KAYFABE_DB_DRIVER",
		"KAYFABE_DB_DSN",
		"KAYFABE_COMMIT_EVERY",
		"KAYFABE_BASELINE_SCORE",
		"KAYFABE_REPLAY_ON_START",
		"KAYFABE_CORS_ORIGINS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "kayfabe-config-*.yaml")
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
