package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/sigte/riskengine/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestNew(t *testing.T) {
	Convey("Given cron schedules", t, func() {
		noop := func(context.Context) error { return nil }

		Convey("When the schedule is malformed", func() {
			_, err := New("every tuesday", noop)

			Convey("Then ErrInvalidSchedule should be returned", func() {
				So(errors.Is(err, ErrInvalidSchedule), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "every tuesday")
			})
		})

		Convey("When the schedule is a weekday morning schedule", func() {
			s, err := New("0 6 * * 1-5", noop, WithTimeout(time.Second), WithLogger(logger.Get()))

			Convey("Then the next run should be the following weekday at six", func() {
				So(err, ShouldBeNil)
				So(s.Spec(), ShouldEqual, "0 6 * * 1-5")
				friday := time.Date(2026, 3, 6, 7, 0, 0, 0, time.Local)
				So(s.Next(friday), ShouldEqual, time.Date(2026, 3, 9, 6, 0, 0, 0, time.Local))
			})
		})

		Convey("When the schedule is a descriptor", func() {
			_, err := New("@daily", noop)

			Convey("Then it should parse", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestSchedulerRuns(t *testing.T) {
	Convey("Given a scheduler ticking every second", t, func() {
		var runs atomic.Int64
		s, err := New("@every 1s", func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("store offline")
		})
		So(err, ShouldBeNil)

		Convey("When started and later stopped", func() {
			s.Start(context.Background())
			deadline := time.Now().Add(3 * time.Second)
			for runs.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			Convey("Then the task should have run despite failing", func() {
				So(runs.Load(), ShouldBeGreaterThan, 0)
				So(s.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestKVFields(t *testing.T) {
	Convey("Given cron key/value pairs", t, func() {
		fields := kvFields([]any{"entry", 1, 7, "x", "dangling"})

		Convey("Then pairs should become fields and the tail be dropped", func() {
			So(len(fields), ShouldEqual, 2)
			So(fields[0].Key, ShouldEqual, "entry")
			So(fields[1].Key, ShouldEqual, "7")
		})
	})
}
