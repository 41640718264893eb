package mailqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, to)

	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

func TestMailQueueDeliversJobs(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	mail := &fakeSender{}
	queue := New(mail, 10, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Run(ctx)

	for i := 0; i < 5; i++ {
		queue.EnqueueJob(&models.EmailJob{To: "someone@example.com", Subject: "hi", Body: "there"})
	}

	assert.Eventually(t, func() bool {
		return mail.sentCount() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestMailQueueReportsFailures(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	mail := &fakeSender{fail: true}
	queue := New(mail, 10, 1)

	var (
		mu       sync.Mutex
		received []error
	)
	queue.ListenErrors(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Run(ctx)

	queue.EnqueueJob(&models.EmailJob{To: "someone@example.com", Subject: "hi", Body: "there"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMailQueueDropsWhenSaturated(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	mail := &fakeSender{}
	queue := New(mail, 1, 1)

	// Workers are not running, so only the single buffered slot is available.
	queue.EnqueueJob(&models.EmailJob{To: "first@example.com"})
	queue.EnqueueJob(&models.EmailJob{To: "second@example.com"})

	assert.Len(t, queue.queue, 1)
}
