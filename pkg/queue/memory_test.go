package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

func testJob(name string) model.Job {
	return model.Job{
		Name:           name,
		URL:            "https://mirror.example.com/" + name + ".iso",
		Type:           model.TransportHTTP,
		DestinationDir: "/data/isos",
		Timestamp:      "2024-01-15T10:30:00Z",
	}
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)
	published := testJob("ubuntu")

	require.NoError(t, q.Publish(context.Background(), published))

	ctx, cancel := context.WithCancel(context.Background())
	var received model.Job
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Consume(ctx, func(_ context.Context, job model.Job) error {
			received = job
			cancel()
			return nil
		})
	}()
	wg.Wait()

	// Field-for-field identical on the consumer side.
	assert.Equal(t, published, received)
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(context.Background(), testJob(name)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, func(_ context.Context, job model.Job) error {
			order = append(order, job.Name)
			if len(order) == 3 {
				cancel()
			}
			return nil
		})
	}()
	<-done

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestMemoryQueueRequeueOnHandlerError(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)
	require.NoError(t, q.Publish(context.Background(), testJob("flaky")))

	ctx, cancel := context.WithCancel(context.Background())
	var deliveries int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, func(_ context.Context, _ model.Job) error {
			deliveries++
			if deliveries == 1 {
				return errors.ErrDownloadFailed
			}
			cancel()
			return nil
		})
	}()
	<-done

	// The nacked job was redelivered at least once.
	assert.GreaterOrEqual(t, deliveries, 2)

	info, err := q.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.Pending)
}

func TestMemoryQueueInfo(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)

	info, err := q.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.Pending)
	assert.Zero(t, info.Consumers)
	assert.Equal(t, BackendMemory, info.Backend)

	require.NoError(t, q.Publish(context.Background(), testJob("a")))
	require.NoError(t, q.Publish(context.Background(), testJob("b")))

	info, err = q.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, info.Pending)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consuming := make(chan struct{})
	go func() {
		close(consuming)
		_ = q.Consume(ctx, func(_ context.Context, _ model.Job) error { return nil })
	}()
	<-consuming

	assert.Eventually(t, func() bool {
		info, err := q.Info(context.Background())
		return err == nil && info.Consumers == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryQueuePublishAfterClose(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), testJob("late"))
	assert.ErrorIs(t, err, errors.ErrQueueClosed)
}

func TestMemoryQueueConsumeStopsOnCancel(t *testing.T) {
	q := NewMemory(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(_ context.Context, _ model.Job) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}
