package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigte/riskengine/internal/adapters/mq/queue"
	"github.com/sigte/riskengine/internal/adapters/mq/worker"
	logging "github.com/sigte/riskengine/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue(jobs ...queue.Job) *mockQueue {
	q := &mockQueue{jobs: make(chan queue.Job, len(jobs)+1)}
	for _, j := range jobs {
		q.jobs <- j
	}
	return q
}

func (m *mockQueue) Dequeue(context.Context) <-chan queue.Job { return m.jobs }

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a drained queue", t, func() {
		q := newMockQueue(queue.Job{Index: 0, StudentID: "s-1"}, queue.Job{Index: 1, StudentID: "s-2"})
		close(q.jobs)

		var mu sync.Mutex
		seen := []string{}
		w := worker.NewInMemoryWorker(q, func(_ context.Context, j queue.Job) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, j.StudentID)
			return nil
		}, worker.WithName("test-worker"), worker.WithLogger(logging.Get()))

		convey.Convey("When run", func() {
			w.Run(context.Background())

			convey.Convey("Then it should process every job and exit", func() {
				convey.So(seen, convey.ShouldResemble, []string{"s-1", "s-2"})
			})
		})
	})

	convey.Convey("Given a worker waiting on an open queue", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, func(context.Context, queue.Job) error { return nil })
		go w.Run(context.Background())

		convey.Convey("When shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it should stop promptly", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose processor panics", t, func() {
		q := newMockQueue(queue.Job{Index: 0, StudentID: "boom"}, queue.Job{Index: 1, StudentID: "ok"})
		close(q.jobs)
		var processed atomic.Int64
		w := worker.NewInMemoryWorker(q, func(_ context.Context, j queue.Job) error {
			if j.StudentID == "boom" {
				panic("bad row")
			}
			processed.Add(1)
			return nil
		})

		convey.Convey("Then the worker should survive and continue", func() {
			convey.So(func() { w.Run(context.Background()) }, convey.ShouldNotPanic)
			convey.So(processed.Load(), convey.ShouldEqual, 1)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		var total atomic.Int64
		pool := worker.NewPool(3, q, func(_ context.Context, j queue.Job) error {
			total.Add(int64(j.Index))
			if j.Index%5 == 0 {
				return errors.New("odd row")
			}
			return nil
		})

		convey.Convey("When ten jobs are processed", func() {
			pool.Start(context.Background())
			for i := 0; i < 10; i++ {
				convey.So(q.Put(context.Background(), queue.Job{Index: i}), convey.ShouldBeNil)
			}
			convey.So(q.Close(), convey.ShouldBeNil)
			pool.Wait()

			convey.Convey("Then every job should run once and failures be counted", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(total.Load(), convey.ShouldEqual, 45)
				convey.So(pool.Failed(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When shut down before any job", func() {
			pool.Start(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then all workers should stop", func() {
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a default-sized pool", t, func() {
		pool := worker.NewPool(0, newMockQueue(), func(context.Context, queue.Job) error { return nil })

		convey.Convey("Then it should size itself from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a batch larger than the queue", t, func() {
		ids := make([]string, 25)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		results := make([]string, len(ids))

		convey.Convey("When fanned out", func() {
			err := worker.Run(context.Background(), 4, 3, ids, func(_ context.Context, j queue.Job) error {
				results[j.Index] = j.StudentID
				return nil
			})

			convey.Convey("Then results should land at their original positions", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(results, convey.ShouldResemble, ids)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := worker.Run(ctx, 2, 1, ids, func(context.Context, queue.Job) error { return nil })

			convey.Convey("Then the interruption should be reported", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}
