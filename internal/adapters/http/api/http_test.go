package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/repute/internal/adapters/http/api"
	"github.com/okian/repute/internal/adapters/repository"
	"github.com/okian/repute/internal/adapters/sources"
	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
	. "github.com/smartystreets/goconvey/convey"
)

// stubDeps is a canned implementation of the handler dependencies.
type stubDeps struct {
	evaluateRes model.AggregationResult
	evaluateErr error

	recorded  []sources.Fact
	recordErr error

	history    []model.Snapshot
	historyErr error
	nearest    model.Snapshot
	nearestErr error

	tiers *tier.Table
}

func newStubDeps() *stubDeps {
	return &stubDeps{
		evaluateRes: model.AggregationResult{
			Score:          6286,
			ConfidenceLow:  5800,
			ConfidenceHigh: 6700,
			Tier:           "operator",
			SourcesUsed:    2,
		},
		history: []model.Snapshot{
			{SubjectID: "merchant-1", TimestampMs: 1_700_000_000_000, Score: 6286, Tier: "operator"},
			{SubjectID: "merchant-1", TimestampMs: 1_699_996_400_000, Score: 6100, Tier: "operator"},
		},
		nearest: model.Snapshot{SubjectID: "merchant-1", TimestampMs: 1_700_000_000_000, Score: 6286, Tier: "operator"},
		tiers:   tier.Default(),
	}
}

func (d *stubDeps) Evaluate(_ context.Context, _ string) (model.AggregationResult, error) {
	return d.evaluateRes, d.evaluateErr
}

func (d *stubDeps) RecordFact(_ context.Context, f sources.Fact) error {
	if d.recordErr != nil {
		return d.recordErr
	}
	d.recorded = append(d.recorded, f)
	return nil
}

func (d *stubDeps) History(_ context.Context, _ string, _ int) ([]model.Snapshot, error) {
	return d.history, d.historyErr
}

func (d *stubDeps) HistoryRange(_ context.Context, _ string, _, _ int64) ([]model.Snapshot, error) {
	return d.history, d.historyErr
}

func (d *stubDeps) HistoryNearest(_ context.Context, _ string, _ int64) (model.Snapshot, error) {
	return d.nearest, d.nearestErr
}

func (d *stubDeps) TierBands() []tier.Band { return d.tiers.Bands() }

func (d *stubDeps) ProgressFor(score int) tier.Progress { return d.tiers.ProgressFor(score) }

func (d *stubDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "factCount": 3}
}

func newTestMux(deps *stubDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestScoreEndpoint(t *testing.T) {
	Convey("Given the API wired to a healthy backend", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When requesting a subject's score", func() {
			rec := doRequest(mux, http.MethodGet, "/score/merchant-1", "")

			Convey("Then the full score card comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var body map[string]any
				decodeBody(t, rec, &body)
				So(body["subject_id"], ShouldEqual, "merchant-1")
				So(body["score"], ShouldEqual, 6286)
				So(body["confidence_low"], ShouldEqual, 5800)
				So(body["confidence_high"], ShouldEqual, 6700)
				So(body["tier"], ShouldEqual, "operator")
				So(body["next_tier"], ShouldEqual, "expert")
				So(body["points_to_next"], ShouldEqual, 1214)
				So(body["sources_used"], ShouldEqual, 2)
			})
		})

		Convey("When the subject id is missing from the path", func() {
			rec := doRequest(mux, http.MethodGet, "/score/", "")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the path has trailing segments", func() {
			rec := doRequest(mux, http.MethodGet, "/score/merchant-1/extra", "")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When every source failed", func() {
			deps.evaluateErr = model.ErrAllSourcesFailed
			rec := doRequest(mux, http.MethodGet, "/score/merchant-1", "")

			Convey("Then the API reports temporary unavailability", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)

				var body map[string]any
				decodeBody(t, rec, &body)
				So(body["code"], ShouldEqual, "unavailable")
			})
		})

		Convey("When evaluation fails for any other reason", func() {
			deps.evaluateErr = errors.New("boom")
			rec := doRequest(mux, http.MethodGet, "/score/merchant-1", "")

			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When the method is not GET", func() {
			rec := doRequest(mux, http.MethodPost, "/score/merchant-1", "")

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestFactsEndpoint(t *testing.T) {
	Convey("Given the API wired to a healthy backend", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When posting a well-formed fact", func() {
			rec := doRequest(mux, http.MethodPost, "/facts",
				`{"source":"payments","subject_id":"merchant-1","timestamp_ms":1700000000000,"amount_cents":50000,"settled":true}`)

			Convey("Then the fact is accepted for asynchronous processing", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)

				var body map[string]any
				decodeBody(t, rec, &body)
				So(body["status"], ShouldEqual, "accepted")
				So(len(deps.recorded), ShouldEqual, 1)
				So(deps.recorded[0].SubjectID, ShouldEqual, "merchant-1")
			})
		})

		Convey("When the body is not JSON", func() {
			rec := doRequest(mux, http.MethodPost, "/facts", "not json")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the fact has no subject", func() {
			rec := doRequest(mux, http.MethodPost, "/facts",
				`{"source":"payments","timestamp_ms":1700000000000}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the backend rejects the source", func() {
			deps.recordErr = sources.ErrUnknownSource
			rec := doRequest(mux, http.MethodPost, "/facts",
				`{"source":"payments","subject_id":"merchant-1","timestamp_ms":1700000000000}`)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the backend fails unexpectedly", func() {
			deps.recordErr = errors.New("disk full")
			rec := doRequest(mux, http.MethodPost, "/facts",
				`{"source":"payments","subject_id":"merchant-1","timestamp_ms":1700000000000}`)

			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When the method is not POST", func() {
			rec := doRequest(mux, http.MethodGet, "/facts", "")

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHistoryEndpoint(t *testing.T) {
	Convey("Given the API wired to a healthy backend", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When requesting recent history", func() {
			rec := doRequest(mux, http.MethodGet, "/history/merchant-1", "")

			Convey("Then the snapshots come back as a list", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var snaps []model.Snapshot
				decodeBody(t, rec, &snaps)
				So(len(snaps), ShouldEqual, 2)
				So(snaps[0].Score, ShouldEqual, 6286)
			})
		})

		Convey("When the limit is not a positive number", func() {
			So(doRequest(mux, http.MethodGet, "/history/merchant-1?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(doRequest(mux, http.MethodGet, "/history/merchant-1?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When requesting a time window", func() {
			rec := doRequest(mux, http.MethodGet, "/history/merchant-1?from=1&to=1700000000000", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the window bounds do not parse", func() {
			rec := doRequest(mux, http.MethodGet, "/history/merchant-1?from=yesterday", "")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When asking for the snapshot nearest an instant", func() {
			rec := doRequest(mux, http.MethodGet, "/history/merchant-1?at=1700000000000", "")

			Convey("Then a single snapshot comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var snap model.Snapshot
				decodeBody(t, rec, &snap)
				So(snap.Score, ShouldEqual, 6286)
			})
		})

		Convey("When the subject has no snapshot near the instant", func() {
			deps.nearestErr = repository.ErrNotFound
			rec := doRequest(mux, http.MethodGet, "/history/merchant-1?at=1700000000000", "")

			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the subject id is missing", func() {
			rec := doRequest(mux, http.MethodGet, "/history/", "")

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestTiersEndpoint(t *testing.T) {
	Convey("Given the API wired to a healthy backend", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When requesting the tier table", func() {
			rec := doRequest(mux, http.MethodGet, "/tiers", "")

			Convey("Then every band is listed, low band first", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var bands []tier.Band
				decodeBody(t, rec, &bands)
				So(len(bands), ShouldEqual, len(tier.Default().Bands()))
				So(bands[0].Name, ShouldEqual, "explorer")
			})
		})

		Convey("When asking for the standing at a score", func() {
			rec := doRequest(mux, http.MethodGet, "/tiers?score=6286", "")

			Convey("Then the progress report comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var progress tier.Progress
				decodeBody(t, rec, &progress)
				So(progress.Tier, ShouldEqual, "operator")
				So(progress.Next, ShouldEqual, "expert")
				So(progress.ToNext, ShouldEqual, 1214)
			})
		})

		Convey("When the score is outside the domain", func() {
			So(doRequest(mux, http.MethodGet, "/tiers?score=10001", "").Code, ShouldEqual, http.StatusBadRequest)
			So(doRequest(mux, http.MethodGet, "/tiers?score=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(doRequest(mux, http.MethodGet, "/tiers?score=soon", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	Convey("Given the API wired to a healthy backend", t, func() {
		deps := newStubDeps()
		mux := newTestMux(deps)

		Convey("When requesting stats", func() {
			rec := doRequest(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider's view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var body map[string]any
				decodeBody(t, rec, &body)
				So(body["started"], ShouldEqual, true)
			})
		})

		Convey("When requesting health", func() {
			rec := doRequest(mux, http.MethodGet, "/healthz", "")

			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
