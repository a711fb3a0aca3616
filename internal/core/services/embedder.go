package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/logger"
	"github.com/custodia-labs/sheetdex/internal/workerpool"
)

// EmbedderConfig configures batching and retries.
type EmbedderConfig struct {
	// Dimensions is the index dimension D. Provider vectors of another size are rejected.
	Dimensions int

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int

	// BatchWindow is how long the batching loop waits for a batch to fill.
	BatchWindow time.Duration

	// MaxAttempts bounds provider calls per batch, including the first.
	MaxAttempts int

	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration

	// RateLimit caps provider calls per second. Zero means unlimited.
	RateLimit float64

	// QueryTimeout bounds a shared query embedding call, which outlives
	// the cancellation of any one caller.
	QueryTimeout time.Duration
}

// EmbedResult is the outcome of embedding a set of content hashes.
type EmbedResult struct {
	// Vectors holds an embedding for every hash that has one.
	Vectors map[string][]float32

	// CacheHits counts hashes served from the embedding store.
	CacheHits int

	// Embedded counts hashes this call sent to the provider successfully.
	Embedded int

	// Failed maps hashes without an embedding to the reason.
	Failed map[string]error
}

// flight is one content hash on its way to the provider. Callers that need
// the same hash while it is in flight wait on the same flight.
type flight struct {
	hash string
	text string
	done chan struct{}
	vec  []float32
	err  error
}

// Embedder deduplicates, batches, retries and caches embedding requests.
type Embedder struct {
	svc       driven.EmbeddingService
	store     driven.EmbeddingStore
	pool      *workerpool.Pool
	queryPool *workerpool.Pool
	limiter   *rate.Limiter
	cfg       EmbedderConfig

	mu       sync.Mutex
	inflight map[string]*flight
	queue    chan *flight

	queries singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEmbedder creates an embedder and starts its batching loop.
// svc may be nil, in which case only cached embeddings are available.
func NewEmbedder(
	svc driven.EmbeddingService,
	store driven.EmbeddingStore,
	ingestPool, queryPool *workerpool.Pool,
	cfg EmbedderConfig,
) *Embedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = 50 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.Dimensions <= 0 && svc != nil {
		cfg.Dimensions = svc.Dimensions()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Embedder{
		svc:       svc,
		store:     store,
		pool:      ingestPool,
		queryPool: queryPool,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		inflight:  make(map[string]*flight),
		queue:     make(chan *flight, cfg.BatchSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	e.wg.Add(1)
	go e.batchLoop()
	return e
}

// Available returns true if a provider is configured.
func (e *Embedder) Available() bool {
	return e.svc != nil
}

// Dimensions returns the index dimension.
func (e *Embedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Embed returns embeddings for the given hash → text pairs. Cached hashes
// are served from the store; misses are batched to the provider. A hash
// missing from the result's Vectors has an entry in Failed. The error is
// non-nil only when the store itself fails.
func (e *Embedder) Embed(ctx context.Context, texts map[string]string) (*EmbedResult, error) {
	res := &EmbedResult{
		Vectors: make(map[string][]float32, len(texts)),
		Failed:  make(map[string]error),
	}
	if len(texts) == 0 {
		return res, nil
	}

	hashes := make([]string, 0, len(texts))
	for h := range texts {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	cached, err := e.store.GetMany(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}

	var misses []string
	for _, h := range hashes {
		if vec, ok := cached[h]; ok && len(vec) == e.cfg.Dimensions {
			res.Vectors[h] = vec
			res.CacheHits++
			continue
		}
		misses = append(misses, h)
	}
	if len(misses) == 0 {
		return res, nil
	}

	if e.svc == nil || e.ctx.Err() != nil {
		reason := domain.ErrEmbeddingUnavailable
		if e.svc != nil {
			reason = ErrEmbedderClosed
		}
		for _, h := range misses {
			res.Failed[h] = reason
		}
		return res, nil
	}

	logger.Debug("Embedding %d content hashes (%d cached)", len(misses), res.CacheHits)

	waits := make(map[string]*flight, len(misses))
	owned := make(map[string]bool)
	var fresh []*flight

	e.mu.Lock()
	for _, h := range misses {
		if f, ok := e.inflight[h]; ok {
			waits[h] = f
			continue
		}
		f := &flight{hash: h, text: texts[h], done: make(chan struct{})}
		e.inflight[h] = f
		waits[h] = f
		owned[h] = true
		fresh = append(fresh, f)
	}
	e.mu.Unlock()

	for i, f := range fresh {
		var err error
		select {
		case e.queue <- f:
			continue
		case <-e.ctx.Done():
			err = ErrEmbedderClosed
		case <-ctx.Done():
			err = ctx.Err()
		}
		e.fail(fresh[i:], err)
		break
	}

	for _, h := range misses {
		f := waits[h]
		select {
		case <-f.done:
			if f.err != nil {
				res.Failed[h] = f.err
				continue
			}
			res.Vectors[h] = f.vec
			if owned[h] {
				res.Embedded++
			}
		case <-ctx.Done():
			res.Failed[h] = ctx.Err()
		}
	}

	return res, nil
}

// EmbedQuery embeds a query string on the query pool. Concurrent identical
// queries share one provider call, bounded by QueryTimeout rather than by
// any caller's context; each caller still returns when its own ctx ends.
// Query embeddings are never cached.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.svc == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	shared := context.WithoutCancel(ctx)
	ch := e.queries.DoChan(text, func() (any, error) {
		callCtx, cancel := context.WithTimeout(shared, e.cfg.QueryTimeout)
		defer cancel()

		var vec []float32
		err := e.queryPool.Do(callCtx, func(ctx context.Context) error {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
			v, err := e.svc.Embed(ctx, text)
			if err != nil {
				return err
			}
			if len(v) != e.cfg.Dimensions {
				return fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
					domain.ErrDimensionMismatch, len(v), e.cfg.Dimensions)
			}
			vec = v
			return nil
		})
		return vec, err
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("embed query: %w", r.Err)
		}
		return r.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ErrEmbedderClosed is returned for requests made after Close.
var ErrEmbedderClosed = errors.New("embedder closed")

// Close stops the batching loop and waits for in-flight batches.
// Requests still queued fail with ErrEmbedderClosed.
func (e *Embedder) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

// batchLoop collects flights from every caller and dispatches them when the
// batch is full or the window expires.
func (e *Embedder) batchLoop() {
	defer e.wg.Done()

	var batch []*flight
	var timer *time.Timer
	var timeout <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timeout = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		b := batch
		batch = nil
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.dispatch(b)
		}()
	}

	for {
		select {
		case f := <-e.queue:
			batch = append(batch, f)
			if len(batch) >= e.cfg.BatchSize {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(e.cfg.BatchWindow)
				timeout = timer.C
			}
		case <-timeout:
			timer, timeout = nil, nil
			flush()
		case <-e.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			e.fail(batch, ErrEmbedderClosed)
			for {
				select {
				case f := <-e.queue:
					e.fail([]*flight{f}, ErrEmbedderClosed)
				default:
					return
				}
			}
		}
	}
}

// dispatch sends one batch to the provider through the ingestion pool,
// retrying with exponential backoff, and caches the results.
func (e *Embedder) dispatch(batch []*flight) {
	texts := make([]string, len(batch))
	for i, f := range batch {
		texts[i] = f.text
	}

	var vecs [][]float32
	var attempts atomic.Int32
	err := e.pool.Do(e.ctx, func(ctx context.Context) error {
		op := func() error {
			n := attempts.Add(1)
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
			out, err := e.svc.EmbedBatch(ctx, texts)
			if err != nil {
				logger.Warn("Embedding batch of %d failed (attempt %d): %v", len(texts), n, err)
				if !domain.IsRetryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			if len(out) != len(texts) {
				return fmt.Errorf("provider returned %d vectors for %d texts", len(out), len(texts))
			}
			for i, v := range out {
				if len(v) != e.cfg.Dimensions {
					return backoff.Permanent(fmt.Errorf("%w: vector %d has %d dimensions, index expects %d",
						domain.ErrDimensionMismatch, i, len(v), e.cfg.Dimensions))
				}
			}
			vecs = out
			return nil
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = e.cfg.InitialBackoff
		b.MaxElapsedTime = 0
		return backoff.Retry(op, backoff.WithContext(
			backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1)), ctx))
	})
	if err != nil {
		n := int(attempts.Load())
		logger.Error("Embedding batch of %d abandoned after %d attempt(s): %v", len(batch), n, err)
		e.fail(batch, &domain.EmbeddingProviderError{Attempts: n, Err: err})
		return
	}

	for i, f := range batch {
		if _, err := e.store.PutIfAbsent(e.ctx, f.hash, vecs[i]); err != nil {
			logger.Warn("Caching embedding %s failed: %v", f.hash, err)
		}
		f.vec = vecs[i]
	}
	e.complete(batch)
}

func (e *Embedder) fail(batch []*flight, err error) {
	for _, f := range batch {
		f.err = err
	}
	e.complete(batch)
}

func (e *Embedder) complete(batch []*flight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range batch {
		delete(e.inflight, f.hash)
		close(f.done)
	}
}
