package config_test

import (
	"errors"
	"testing"

	"github.com/okian/kayfabe/internal/adapters/mq/amqp"
	"github.com/okian/kayfabe/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.CommitEvery, convey.ShouldEqual, 1000)
			convey.So(cfg.BaselineScore, convey.ShouldEqual, 4000)
			convey.So(cfg.DifferenceMaker, convey.ShouldEqual, 5)
			convey.So(cfg.MassEliminationLosers, convey.ShouldEqual, 5)
			convey.So(cfg.EventModifiers["pay per view"], convey.ShouldEqual, 17)
			convey.So(cfg.ResolutionPenalties["dq"], convey.ShouldEqual, 1.5)
			convey.So(cfg.RankMonths, convey.ShouldEqual, 3)
			convey.So(cfg.RankLimit, convey.ShouldEqual, 400)
		})

		convey.Convey("Then the broker queue should match the consumer default", func() {
			convey.So(cfg.AMQPQueue, convey.ShouldEqual, "kayfabe.batches")
			convey.So(cfg.AMQPQueue, convey.ShouldEqual, amqp.DefaultQueue)
		})

		convey.Convey("Then the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given configs with invalid settings", t, func() {
		cases := map[string]func(c *config.Config){
			"unknown driver":    func(c *config.Config) { c.DBDriver = "mysql" },
			"empty dsn":         func(c *config.Config) { c.DBDSN = " " },
			"zero commit":       func(c *config.Config) { c.CommitEvery = 0 },
			"zero baseline":     func(c *config.Config) { c.BaselineScore = 0 },
			"zero multiplier":   func(c *config.Config) { c.DifferenceMaker = 0 },
			"zero window":       func(c *config.Config) { c.RankMonths = 0 },
			"zero limit":        func(c *config.Config) { c.RankLimit = 0 },
			"zero penalty":      func(c *config.Config) { c.ResolutionPenalties["dq"] = 0 },
			"empty listen addr": func(c *config.Config) { c.Addr = "" },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" should be rejected", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
