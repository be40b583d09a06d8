package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/consortium/internal/adapters/mq/queue"
	worker "github.com/okian/consortium/internal/adapters/mq/worker"
	repository "github.com/okian/consortium/internal/adapters/repository"
	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	logging "github.com/okian/consortium/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockEvaluator struct {
	fail map[string]error
}

func (me *mockEvaluator) Evaluate(req evaluation.Request) (evaluation.EvaluationResult, error) {
	if err, ok := me.fail[req.Region]; ok {
		return evaluation.EvaluationResult{Failed: true, Failure: err.Error()}, err
	}
	return evaluation.EvaluationResult{ExpectedScore: 80 + req.DutyRatio}, nil
}

type mockSaver struct {
	mu    sync.Mutex
	saved []repository.Record
	err   error
}

func (ms *mockSaver) Save(_ context.Context, rec repository.Record) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return "", ms.err
	}
	ms.saved = append(ms.saved, rec)
	return fmt.Sprintf("r%d", len(ms.saved)), nil
}

func (ms *mockSaver) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.saved)
}

type report struct {
	job queue.Job
	id  string
	err error
}

type chanReporter chan report

func (c chanReporter) Report(_ context.Context, job queue.Job, id string, err error) {
	c <- report{job: job, id: id, err: err}
}

func await(c chanReporter) report {
	select {
	case r := <-c:
		return r
	case <-time.After(2 * time.Second):
		return report{err: errors.New("timed out waiting for report")}
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		ev := &mockEvaluator{fail: map[string]error{"bad": evaluation.ErrNoMembers}}
		saver := &mockSaver{}
		reports := make(chanReporter, 10)

		w := worker.NewInMemoryWorker(q, ev, saver, worker.WithName("test-worker"), worker.WithReporter(reports))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a valid job arrives", func() {
			q.jobs <- queue.Job{BatchID: "b1", Index: 0, TenderID: "T-1", Candidate: "A+B", Request: evaluation.Request{DutyRatio: 7}}
			r := await(reports)

			convey.Convey("Then the result is saved and reported", func() {
				convey.So(r.err, convey.ShouldBeNil)
				convey.So(r.id, convey.ShouldEqual, "r1")
				convey.So(saver.count(), convey.ShouldEqual, 1)
				convey.So(saver.saved[0].TenderID, convey.ShouldEqual, "T-1")
				convey.So(saver.saved[0].Candidate, convey.ShouldEqual, "A+B")
				convey.So(saver.saved[0].Result.ExpectedScore, convey.ShouldEqual, 87)
				convey.So(saver.saved[0].Fingerprint, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When evaluation fails", func() {
			q.jobs <- queue.Job{BatchID: "b1", Index: 3, Request: evaluation.Request{Region: "bad"}}
			r := await(reports)

			convey.Convey("Then nothing is saved and the error is reported", func() {
				convey.So(errors.Is(r.err, evaluation.ErrNoMembers), convey.ShouldBeTrue)
				convey.So(r.id, convey.ShouldBeEmpty)
				convey.So(r.job.Index, convey.ShouldEqual, 3)
				convey.So(saver.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the store refuses the result", func() {
			saver.err = repository.ErrInvalidRecord
			q.jobs <- queue.Job{BatchID: "b2", TenderID: ""}
			r := await(reports)

			convey.So(errors.Is(r.err, repository.ErrInvalidRecord), convey.ShouldBeTrue)
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		saver := &mockSaver{}
		reports := make(chanReporter, 100)
		pool := worker.NewPool(4, q, &mockEvaluator{}, saver, worker.WithReporter(reports))
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs are queued and the pool shuts down", func() {
			for i := 0; i < 40; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{BatchID: "b", Index: i, TenderID: "T-1"}), convey.ShouldBeNil)
			}
			for i := 0; i < 40; i++ {
				convey.So(await(reports).err, convey.ShouldBeNil)
			}
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then every job was saved and the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(saver.count(), convey.ShouldEqual, 40)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with no explicit size", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), &mockEvaluator{}, &mockSaver{})
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
