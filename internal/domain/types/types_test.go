package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/kayfabe/internal/domain/ranking"
	"github.com/okian/kayfabe/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResponseShapes(t *testing.T) {
	Convey("Given responses that embed ranking results", t, func() {
		Convey("When a movement response is encoded", func() {
			resp := types.MovementResponse{
				Window: types.WindowInfo{From: "2024-01-01", To: "2024-03-31"},
				Movement: ranking.Movement{
					Riser:    &ranking.Move{WrestlerID: 7, Rank: 1, PreviousRank: 5, RankDelta: 4},
					Compared: 3,
				},
			}
			raw, err := json.Marshal(resp)
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(raw, &got), ShouldBeNil)

			Convey("Then movement fields sit next to the window", func() {
				So(got, ShouldContainKey, "riser")
				So(got, ShouldContainKey, "dropper")
				So(got["dropper"], ShouldBeNil)
				So(got["compared"], ShouldEqual, 3)
				So(got["window"], ShouldResemble, map[string]any{"from": "2024-01-01", "to": "2024-03-31"})
			})
		})

		Convey("When a rank response has no previous rank", func() {
			raw, err := json.Marshal(types.RankResponse{WrestlerID: 9, Rank: 2, Score: 4100})
			So(err, ShouldBeNil)

			Convey("Then previous fields are encoded as null", func() {
				So(string(raw), ShouldContainSubstring, `"previous_rank":null`)
				So(string(raw), ShouldContainSubstring, `"previous_score":null`)
			})
		})
	})
}
