package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/sortie/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WindowDays, convey.ShouldEqual, 7)
			convey.So(cfg.TopK, convey.ShouldEqual, 30)
			convey.So(cfg.TopN, convey.ShouldEqual, 10)
			convey.So(cfg.EmbWeight, convey.ShouldEqual, 0.7)
			convey.So(cfg.BoroughWeight, convey.ShouldEqual, 0.3)
			convey.So(cfg.DescriptionCap, convey.ShouldEqual, 300)
			convey.So(cfg.Timezone, convey.ShouldEqual, "America/Toronto")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then durations are derived from milliseconds", func() {
			convey.So(cfg.EmbedTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.WeatherTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.LLMTimeout(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.FeedTimeout(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.BreakerCooldown(), convey.ShouldEqual, 30*time.Second)
		})

		convey.Convey("Then the timezone resolves", func() {
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc.String(), convey.ShouldEqual, "America/Toronto")
		})
	})
}
