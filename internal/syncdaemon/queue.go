package syncdaemon

import (
	"context"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/vaultlabs/vlt/internal/obslog"
)

// Job is one unit of work the daemon retries until it succeeds or exhausts
// its attempt budget.
type Job struct {
	ID      string
	Project string
	Path    string
	Attempt int
}

// Processor does the actual work behind one Job; in production this is
// internal/delta's Indexer.IndexFile.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

const maxAttempts = 5

// Queue accepts jobs. The channel backend runs them against a Processor
// with at-least-once retry, backing off between attempts and giving up
// (marking the job failed) only after maxAttempts; the Kafka backend only
// produces them onto a topic.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Status() Status
	Close() error
}

// Status is a point-in-time snapshot of the queue's depth and outcome
// counters, returned by GET /sync/status.
type Status struct {
	Pending   int
	Succeeded int
	Failed    int
}

// channelQueue is the default queue backend: an in-process buffered
// channel with a fixed worker pool. Used whenever no Kafka brokers are
// configured.
type channelQueue struct {
	jobs      chan Job
	processor Processor

	mu        sync.Mutex
	pending   int
	succeeded int
	failed    int

	done chan struct{}
}

// NewChannelQueue starts workerCount goroutines draining jobs against
// processor.
func NewChannelQueue(processor Processor, workerCount int) *channelQueue {
	if workerCount <= 0 {
		workerCount = 4
	}
	q := &channelQueue{
		jobs:      make(chan Job, 256),
		processor: processor,
		done:      make(chan struct{}),
	}
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			q.drain()
		}()
	}
	go func() {
		wg.Wait()
		close(q.done)
	}()
	return q
}

func (q *channelQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *channelQueue) drain() {
	for job := range q.jobs {
		q.runWithRetry(job)
	}
}

func (q *channelQueue) runWithRetry(job Job) {
	ctx := context.Background()
	var lastErr error
	for attempt := job.Attempt; attempt < maxAttempts; attempt++ {
		err := q.processor.Process(ctx, job)
		if err == nil {
			q.mu.Lock()
			q.pending--
			q.succeeded++
			q.mu.Unlock()
			return
		}
		lastErr = err
		obslog.Get().Warn().Err(err).Str("path", job.Path).Int("attempt", attempt+1).Msg("sync job failed, retrying")
		backoff := time.Duration(200*(1<<uint(attempt))) * time.Millisecond
		time.Sleep(backoff)
	}
	obslog.Get().Error().Err(lastErr).Str("path", job.Path).Msg("sync job exhausted retries")
	q.mu.Lock()
	q.pending--
	q.failed++
	q.mu.Unlock()
}

func (q *channelQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Pending: q.pending, Succeeded: q.succeeded, Failed: q.failed}
}

func (q *channelQueue) Close() error {
	close(q.jobs)
	<-q.done
	return nil
}

// kafkaQueue produces jobs onto a Kafka topic instead of processing them
// in-process; a separate consumer process (not part of this daemon's
// request path) is expected to drain the topic. Used when
// config.SyncConfig.KafkaBrokers is set, mirroring the teacher's own
// enterprise-optional Kafka gating.
type kafkaQueue struct {
	writer *kafka.Writer

	mu        sync.Mutex
	produced  int
	failed    int
}

// NewKafkaQueue builds a producer-only queue writing to topic across
// brokers.
func NewKafkaQueue(brokers []string, topic string) *kafkaQueue {
	return &kafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (q *kafkaQueue) Enqueue(ctx context.Context, job Job) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.Project + ":" + job.Path),
		Value: []byte(job.Path),
	})
	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.failed++
		return err
	}
	q.produced++
	return nil
}

func (q *kafkaQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Pending: 0, Succeeded: q.produced, Failed: q.failed}
}

func (q *kafkaQueue) Close() error {
	return q.writer.Close()
}
