package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"dark_api/internal/platform/queue"
)

type CleanupSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.CleanupJob, error)
	Push(ctx context.Context, job queue.CleanupJob) error
}

type ImageDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// ImageCleanupWorker retries image deletions that failed while a task was being rejected.
type ImageCleanupWorker struct {
	queue       CleanupSource
	images      ImageDeleter
	maxAttempts int
	pollTimeout time.Duration
	errBackoff  time.Duration
}

func NewImageCleanupWorker(q CleanupSource, images ImageDeleter, maxAttempts int) *ImageCleanupWorker {
	return &ImageCleanupWorker{
		queue:       q,
		images:      images,
		maxAttempts: maxAttempts,
		pollTimeout: time.Second,
		errBackoff:  5 * time.Second,
	}
}

func (w *ImageCleanupWorker) Start(ctx context.Context) {
	log.Println("Image cleanup worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Image cleanup worker stopping...")
			return
		default:
			job, err := w.queue.Pop(ctx, w.pollTimeout)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Printf("ERROR: Failed to pop image cleanup job: %v", err)
				w.sleep(ctx, w.errBackoff)
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

// handle deletes the image and puts the job back with one more attempt on failure,
// until maxAttempts is reached and the ref is given up on.
func (w *ImageCleanupWorker) handle(ctx context.Context, job *queue.CleanupJob) {
	err := w.images.Delete(ctx, job.Ref)
	if err == nil {
		log.Printf("INFO: Deleted orphaned image %s after %d retries", job.Ref, job.Attempts+1)
		return
	}

	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		log.Printf("ERROR: Giving up on image %s after %d attempts: %v", job.Ref, job.Attempts, err)
		return
	}
	log.Printf("WARN: Failed to delete image %s (attempt %d): %v", job.Ref, job.Attempts, err)
	if err := w.queue.Push(ctx, *job); err != nil {
		log.Printf("ERROR: Failed to re-queue image %s: %v", job.Ref, err)
	}
}

func (w *ImageCleanupWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
