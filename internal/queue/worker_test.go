package queue

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls int
	fn    func(name string, data []byte) (*types.AudioRecord, error)
}

func (f *fakeIngester) Transcribe(ctx context.Context, name string, r io.Reader) (*types.AudioRecord, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return f.fn(name, data)
}

func newTestPool(t *testing.T, workers int, fn func(string, []byte) (*types.AudioRecord, error)) (*WorkerPool, *fakeIngester) {
	t.Helper()
	ing := &fakeIngester{fn: fn}
	wp := NewWorkerPool(workers, ing, zap.NewNop())
	wp.Start()
	t.Cleanup(wp.Stop)
	return wp, ing
}

func TestWorkerPool_Submit(t *testing.T) {
	wp, _ := newTestPool(t, 2, func(name string, data []byte) (*types.AudioRecord, error) {
		return &types.AudioRecord{ID: "id-" + string(data), OriginalName: name}, nil
	})

	job := NewJob("lesson1.mp3", types.SourceUpload, strings.NewReader("1"))
	rec, err := wp.Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.ID != "id-1" || rec.OriginalName != "lesson1.mp3" {
		t.Errorf("record = %+v", rec)
	}
	if job.Status != types.StatusCompleted {
		t.Errorf("status = %q", job.Status)
	}
	select {
	case <-job.Done():
	default:
		t.Error("done channel not closed")
	}
}

func TestWorkerPool_Submit_Failure(t *testing.T) {
	boom := errors.New("boom")
	wp, _ := newTestPool(t, 1, func(string, []byte) (*types.AudioRecord, error) {
		return nil, boom
	})

	job := NewJob("a.mp3", types.SourceUpload, strings.NewReader("x"))
	_, err := wp.Submit(context.Background(), job)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if job.Status != types.StatusFailed {
		t.Errorf("status = %q", job.Status)
	}
}

func TestWorkerPool_Submit_PanicRecovered(t *testing.T) {
	wp, _ := newTestPool(t, 1, func(name string, _ []byte) (*types.AudioRecord, error) {
		if name == "bad.mp3" {
			panic("decoder exploded")
		}
		return &types.AudioRecord{ID: "ok"}, nil
	})

	if _, err := wp.Submit(context.Background(), NewJob("bad.mp3", types.SourceUpload, strings.NewReader("x"))); err == nil {
		t.Fatal("expected error from panicking job")
	}

	// the worker survives and keeps serving
	rec, err := wp.Submit(context.Background(), NewJob("good.mp3", types.SourceUpload, strings.NewReader("x")))
	if err != nil || rec.ID != "ok" {
		t.Errorf("after panic: %+v, %v", rec, err)
	}
}

func TestWorkerPool_Submit_Concurrent(t *testing.T) {
	wp, ing := newTestPool(t, 3, func(name string, data []byte) (*types.AudioRecord, error) {
		time.Sleep(5 * time.Millisecond)
		return &types.AudioRecord{ID: name}, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		name := string(rune('a'+i)) + ".mp3"
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := wp.Submit(context.Background(), NewJob(name, types.SourceUpload, strings.NewReader("x")))
			if err != nil {
				errs <- err
				return
			}
			if rec.ID != name {
				errs <- errors.New("got record for " + rec.ID + ", want " + name)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if ing.calls != 10 {
		t.Errorf("ingester called %d times", ing.calls)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	wp := NewWorkerPool(1, &fakeIngester{}, zap.NewNop())
	wp.Start()
	wp.Stop()
	wp.Stop()

	_, err := wp.Submit(context.Background(), NewJob("a.mp3", types.SourceUpload, strings.NewReader("x")))
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestWorkerPool_Submit_CallerGivesUp(t *testing.T) {
	release := make(chan struct{})
	wp, _ := newTestPool(t, 1, func(string, []byte) (*types.AudioRecord, error) {
		<-release
		return &types.AudioRecord{ID: "late"}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	job := NewJob("slow.mp3", types.SourceUpload, strings.NewReader("x"))
	if _, err := wp.Submit(ctx, job); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// the job itself still runs to completion
	close(release)
	<-job.Done()
	if job.Status != types.StatusCompleted || job.Record.ID != "late" {
		t.Errorf("job = %+v", job)
	}
}
