package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/demodata"
	"github.com/smartystreets/goconvey/convey"
)

func TestSeedAndVerify(t *testing.T) {
	convey.Convey("Given a small demo population", t, func() {
		ctx := context.Background()
		gen := demodata.DefaultConfig(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
		gen.Students = 20

		convey.Convey("When seeding a sqlite file", func() {
			dsn := filepath.Join(t.TempDir(), "demo.db")
			err := seedAndVerify(ctx, repository.DriverSQLite, dsn, gen, "", time.Second)

			convey.Convey("Then the students should be readable back", func() {
				convey.So(err, convey.ShouldBeNil)
				store, err := repository.Open(ctx, repository.DriverSQLite, dsn)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = store.Close() }()
				n, err := store.CountActiveStudents(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 18)
			})
		})

		convey.Convey("When the memory driver is requested", func() {
			err := seedAndVerify(ctx, repository.DriverMemory, "", gen, "", time.Second)

			convey.Convey("Then it should be refused", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
