// Package mailqueue decouples mail delivery from request handling: handlers
// enqueue jobs and return immediately, background workers deliver them and
// report failures through an error channel.
package mailqueue

import (
	"context"

	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type sender interface {
	Send(to, subject, body string) error
}

// MailQueue is a buffered queue of outgoing mail drained by worker goroutines.
type MailQueue struct {
	queue        chan *models.EmailJob
	mail         sender
	workers      int
	errorChannel chan error
}

// New returns a MailQueue with the given buffer capacity and worker count.
func New(mail sender, channelCapacity, workers int) *MailQueue {
	return &MailQueue{
		mail:         mail,
		queue:        make(chan *models.EmailJob, channelCapacity),
		workers:      workers,
		errorChannel: make(chan error, channelCapacity),
	}
}

// ListenErrors invokes callback for every delivery error until the error
// channel is drained and closed.
func (q *MailQueue) ListenErrors(callback func(error)) {
	go func() {
		for err := range q.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the worker goroutines. They stop when ctx is cancelled.
func (q *MailQueue) Run(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.queue:
					if err := q.mail.Send(job.To, job.Subject, job.Body); err != nil {
						q.errorChannel <- err
					}
				}
			}
		}()
	}
}

// EnqueueJob queues a mail for delivery. When the queue is saturated the job
// is dropped and logged rather than blocking the caller.
func (q *MailQueue) EnqueueJob(job *models.EmailJob) {
	select {
	case q.queue <- job:
	default:
		logger.Log.Warnln("mail queue is full, dropping message", "to", job.To, "subject", job.Subject)
	}
}
