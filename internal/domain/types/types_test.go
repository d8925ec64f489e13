package types_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/sortie/internal/domain/model"
	types "github.com/okian/sortie/internal/domain/types"
)

func TestFromEvents(t *testing.T) {
	Convey("Given ranked events", t, func() {
		start := time.Date(2026, 10, 20, 18, 0, 0, 0, time.UTC)
		events := []model.Event{
			{ID: "a", Title: "Jazz", Start: start, CombinedScore: 0.9, EmbeddingScore: 0.8, BoroughPref: 1, Price: model.Float(0)},
			{ID: "b", Title: "Expo", Start: start, CombinedScore: 0.4, Price: model.Float(12), RainProb: model.Float(30)},
		}

		Convey("When converting to entries", func() {
			entries := types.FromEvents(events)

			Convey("Then ranks follow input order starting at 1", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].Rank, ShouldEqual, 2)
			})

			Convey("Then the combined score is the entry score", func() {
				So(entries[0].Score, ShouldEqual, 0.9)
				So(entries[0].EmbeddingScore, ShouldEqual, 0.8)
				So(entries[0].BoroughPref, ShouldEqual, 1.0)
			})

			Convey("Then price and weather are carried", func() {
				So(entries[0].Free, ShouldBeTrue)
				So(entries[1].Free, ShouldBeFalse)
				So(*entries[1].RainProb, ShouldEqual, 30.0)
				So(entries[0].TempC, ShouldBeNil)
			})
		})

		Convey("When converting nothing", func() {
			So(types.FromEvents(nil), ShouldBeEmpty)
		})
	})
}
