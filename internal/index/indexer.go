package index

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wsio/wsio/internal/logger"
	"github.com/wsio/wsio/internal/metrics"
)

const (
	// DefaultWorkers is the number of background indexing workers.
	DefaultWorkers = 4

	// DefaultQueueSize bounds how many documents wait for a worker.
	DefaultQueueSize = 1024

	// DefaultBatchSize is the largest _bulk payload a worker sends.
	DefaultBatchSize = 100

	// DefaultFlushInterval caps how long a partial batch waits.
	DefaultFlushInterval = time.Second
)

// IndexerConfig tunes the background worker pool. Zero values take the
// package defaults.
type IndexerConfig struct {
	Workers       int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Indexer feeds documents to the search engine from a bounded queue.
// Enqueue never blocks: when the queue is full the document is dropped
// and counted, because indexing lag must not stall object traffic.
type Indexer struct {
	client *Client
	log    *logger.Logger
	cfg    IndexerConfig

	queue chan Document
	group *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewIndexer creates an Indexer over the client.
func NewIndexer(client *Client, log *logger.Logger, cfg IndexerConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Indexer{
		client: client,
		log:    log,
		cfg:    cfg,
		queue:  make(chan Document, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers run until Stop is called or
// ctx is cancelled.
func (ix *Indexer) Start(ctx context.Context) {
	ix.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < ix.cfg.Workers; i++ {
		ix.group.Go(func() error {
			ix.work(ctx)
			return nil
		})
	}
}

// Stop closes the queue, drains what remains and waits for the workers.
// Stop is idempotent; documents enqueued afterwards are dropped.
func (ix *Indexer) Stop() {
	ix.mu.Lock()
	if !ix.closed {
		ix.closed = true
		close(ix.queue)
	}
	ix.mu.Unlock()

	if ix.group != nil {
		_ = ix.group.Wait()
	}
}

// Enqueue hands a document to the pool without blocking. A full queue
// or a stopped indexer drops the document.
func (ix *Indexer) Enqueue(doc Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		ix.drop(doc)
		return
	}
	select {
	case ix.queue <- doc:
	default:
		ix.drop(doc)
	}
}

func (ix *Indexer) drop(doc Document) {
	metrics.CountIndexDropped(1)
	ix.log.With().Str("path", doc.Path).Logger().
		Warn("indexing queue full or stopped, dropping document")
}

func (ix *Indexer) work(ctx context.Context) {
	ticker := time.NewTicker(ix.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Document, 0, ix.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := ix.client.Bulk(ctx, batch); err != nil {
			ix.log.With().Int("documents", len(batch)).Err(err).Logger().
				Error("bulk index failed")
		} else {
			metrics.CountIndexed(len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case doc, ok := <-ix.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, doc)
			if len(batch) >= ix.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
