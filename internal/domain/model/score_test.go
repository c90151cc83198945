package model_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/okian/repute/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func validScore() model.SourceScore {
	return model.SourceScore{
		Source:      "payments",
		RawScore:    7200,
		Weight:      0.25,
		Confidence:  0.8,
		DataPoints:  40,
		DecayFactor: 0.9,
		LastUpdated: 1_700_000_000_000,
	}
}

func TestSourceScoreValidate(t *testing.T) {
	Convey("Given a source score contract", t, func() {
		Convey("When every field is in its domain", func() {
			So(validScore().Validate(), ShouldBeNil)
		})

		Convey("When the source name is missing", func() {
			s := validScore()
			s.Source = ""
			So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
		})

		Convey("When the raw score escapes its domain", func() {
			for _, raw := range []float64{-1, 10001, math.NaN(), math.Inf(1)} {
				s := validScore()
				s.RawScore = raw
				So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
			}
		})

		Convey("When the weight escapes [0,1]", func() {
			for _, w := range []float64{-0.1, 1.1, math.NaN()} {
				s := validScore()
				s.Weight = w
				So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
			}
		})

		Convey("When the confidence escapes [0,1]", func() {
			for _, c := range []float64{-0.1, 1.0001, math.Inf(-1)} {
				s := validScore()
				s.Confidence = c
				So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
			}
		})

		Convey("When the data point count is negative", func() {
			s := validScore()
			s.DataPoints = -1
			So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
		})

		Convey("When the decay factor escapes (0,1]", func() {
			for _, d := range []float64{0, -0.5, 1.5, math.NaN()} {
				s := validScore()
				s.DecayFactor = d
				So(errors.Is(s.Validate(), model.ErrContractViolation), ShouldBeTrue)
			}
		})

		Convey("When a violation is reported", func() {
			s := validScore()
			s.Weight = 2

			Convey("Then the error names the offending source", func() {
				So(strings.Contains(s.Validate().Error(), "payments"), ShouldBeTrue)
			})
		})

		Convey("When boundary values are used", func() {
			s := validScore()
			s.RawScore = 10000
			s.Weight = 1
			s.Confidence = 1
			s.DecayFactor = 1
			So(s.Validate(), ShouldBeNil)

			s.RawScore = 0
			s.Weight = 0
			s.Confidence = 0
			So(s.Validate(), ShouldBeNil)
		})
	})
}

func TestEmptySignal(t *testing.T) {
	Convey("Given the zero-data contribution", t, func() {
		s := model.EmptySignal("reviews")

		Convey("Then it is a valid score that reports empty", func() {
			So(s.Validate(), ShouldBeNil)
			So(s.IsEmpty(), ShouldBeTrue)
			So(s.Source, ShouldEqual, "reviews")
			So(s.DecayFactor, ShouldEqual, 1.0)
		})
	})

	Convey("Given a score carrying signal", t, func() {
		Convey("Then it does not report empty", func() {
			So(validScore().IsEmpty(), ShouldBeFalse)
		})
	})
}
