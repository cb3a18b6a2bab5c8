package demodata_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sigte/riskengine/internal/adapters/http/api"
	"github.com/sigte/riskengine/internal/adapters/repository"
	service "github.com/sigte/riskengine/internal/app"
	"github.com/sigte/riskengine/internal/demodata"
	"github.com/sigte/riskengine/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var refNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	Convey("Given the default demo config", t, func() {
		ctx := context.Background()
		cfg := demodata.DefaultConfig(refNow)

		Convey("When generating twice with the same seed", func() {
			a, errA := demodata.Generate(ctx, cfg)
			b, errB := demodata.Generate(ctx, cfg)

			Convey("Then the datasets should be identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldResemble, b)
			})
		})

		Convey("When generating with another seed", func() {
			a, _ := demodata.Generate(ctx, cfg)
			cfg.Seed = 7
			b, _ := demodata.Generate(ctx, cfg)

			Convey("Then attendance should differ", func() {
				So(a.Attendance, ShouldNotResemble, b.Attendance)
				So(a.Students, ShouldResemble, b.Students)
			})
		})

		Convey("When inspecting the population", func() {
			ds, err := demodata.Generate(ctx, cfg)
			So(err, ShouldBeNil)

			Convey("Then the shape should follow the config", func() {
				So(ds.Schools, ShouldHaveLength, demodata.DefaultSchools)
				So(ds.Routes, ShouldHaveLength, demodata.DefaultRoutes)
				So(ds.Vehicles, ShouldHaveLength, demodata.DefaultRoutes)
				So(ds.Students, ShouldHaveLength, demodata.DefaultStudents)
				So(ds.Active(), ShouldEqual, 108)
			})

			Convey("Then attendance should cover active students on school days only", func() {
				status := map[string]string{}
				for _, st := range ds.Students {
					status[st.ID] = st.Status
				}
				seen := map[string]bool{}
				for _, r := range ds.Attendance {
					So(status[r.StudentID], ShouldEqual, model.StudentActive)
					So(r.Date.Weekday(), ShouldNotEqual, time.Saturday)
					So(r.Date.Weekday(), ShouldNotEqual, time.Sunday)
					So(r.Date.After(model.Day(refNow)), ShouldBeFalse)
					seen[r.StudentID] = true
				}
				So(len(seen), ShouldEqual, ds.Active())
			})

			Convey("Then record ids should be unique", func() {
				ids := map[string]bool{}
				for _, r := range ds.Attendance {
					ids[r.ID] = true
				}
				for _, in := range ds.Incidents {
					ids[in.ID] = true
				}
				So(len(ids), ShouldEqual, len(ds.Attendance)+len(ds.Incidents))
			})

			Convey("Then incidents should stay inside the history", func() {
				earliest := model.Day(refNow).AddDate(0, 0, -cfg.Days)
				for _, in := range ds.Incidents {
					So(in.OccurredAt.Before(earliest), ShouldBeFalse)
					So(in.RouteID, ShouldNotBeEmpty)
				}
			})
		})

		Convey("When the config is unusable", func() {
			cfg.Routes = 0
			_, err := demodata.Generate(ctx, cfg)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, demodata.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLoadAndVerify(t *testing.T) {
	Convey("Given a demo population loaded into a memory store", t, func() {
		ctx := context.Background()
		ds, err := demodata.Generate(ctx, demodata.DefaultConfig(refNow))
		So(err, ShouldBeNil)

		store := repository.NewMemoryStore()
		So(demodata.Load(ctx, store, ds), ShouldBeNil)

		Convey("Then the store should hold every active student", func() {
			n, err := store.CountActiveStudents(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, ds.Active())
		})

		Convey("When verifying against a running service", func() {
			svc, err := service.New(store, service.WithClock(func() time.Time { return refNow }))
			So(err, ShouldBeNil)
			mux := http.NewServeMux()
			api.NewServer(svc, svc).Register(ctx, mux)
			srv := httptest.NewServer(mux)
			defer srv.Close()

			summary, err := demodata.Verify(ctx, srv.URL, 10*time.Second)

			Convey("Then every active student should be accounted for", func() {
				So(err, ShouldBeNil)
				So(summary.TotalAnalyzed, ShouldEqual, ds.Active())
				So(summary.Distribution.Total(), ShouldEqual, ds.Active())
			})
		})

		Convey("When the service is failing", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := demodata.Verify(ctx, srv.URL, time.Second)

			Convey("Then verification should fail", func() {
				So(errors.Is(err, demodata.ErrVerification), ShouldBeTrue)
			})
		})
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Given the help text", t, func() {
		var buf bytes.Buffer
		demodata.ShowHelp(&buf)
		So(buf.String(), ShouldContainSubstring, "-students")
		So(buf.String(), ShouldContainSubstring, "-verify")
	})
}
