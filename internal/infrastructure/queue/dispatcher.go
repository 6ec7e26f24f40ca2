package queue

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnhub/user-service/internal/pkg/metrics"
)

const channelBuffer = 256

// Hasher is the synchronous primitive the dispatcher runs on its workers.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) (bool, error)
}

type jobKind int

const (
	jobHash jobKind = iota
	jobVerify
)

func (k jobKind) String() string {
	if k == jobVerify {
		return "verify"
	}
	return "hash"
}

type job struct {
	ctx       context.Context
	kind      jobKind
	plaintext string
	hashed    string
	result    chan<- result
}

type result struct {
	hash  string
	match bool
	err   error
}

// HashDispatcher runs bcrypt work on a fixed set of workers so that a burst
// of logins cannot occupy every CPU. It implements ports.PasswordHasher.
type HashDispatcher struct {
	jobs   chan job
	hasher Hasher
	n      int
	log    zerolog.Logger
}

// NewHashDispatcher creates a dispatcher with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewHashDispatcher(numWorkers int, hasher Hasher, log zerolog.Logger) *HashDispatcher {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &HashDispatcher{
		jobs:   make(chan job, channelBuffer),
		hasher: hasher,
		n:      numWorkers,
		log:    log,
	}
}

// Workers reports the pool size.
func (d *HashDispatcher) Workers() int { return d.n }

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *HashDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.n; i++ {
		go d.runWorker(ctx, i)
	}
	d.log.Debug().Int("workers", d.n).Msg("hash dispatcher started")
}

// Hash queues a hash job and waits for its result or for ctx to end.
func (d *HashDispatcher) Hash(ctx context.Context, plaintext string) (string, error) {
	r, err := d.submit(ctx, job{kind: jobHash, plaintext: plaintext})
	if err != nil {
		return "", err
	}
	return r.hash, r.err
}

// Verify queues a verify job and waits for its result or for ctx to end.
func (d *HashDispatcher) Verify(ctx context.Context, plaintext, hashed string) (bool, error) {
	r, err := d.submit(ctx, job{kind: jobVerify, plaintext: plaintext, hashed: hashed})
	if err != nil {
		return false, err
	}
	return r.match, r.err
}

func (d *HashDispatcher) submit(ctx context.Context, j job) (result, error) {
	ch := make(chan result, 1)
	j.ctx = ctx
	j.result = ch

	select {
	case d.jobs <- j:
		metrics.HashQueueDepth.Set(float64(len(d.jobs)))
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (d *HashDispatcher) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			metrics.HashQueueDepth.Set(float64(len(d.jobs)))
			// The caller already gave up; skip the bcrypt round.
			if j.ctx.Err() != nil {
				continue
			}
			j.result <- d.run(j, id)
		}
	}
}

func (d *HashDispatcher) run(j job, id int) result {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues(j.kind.String()).Observe(time.Since(start).Seconds())
	}()

	var r result
	switch j.kind {
	case jobHash:
		r.hash, r.err = d.hasher.Hash(j.plaintext)
	case jobVerify:
		r.match, r.err = d.hasher.Verify(j.plaintext, j.hashed)
	}
	if r.err != nil {
		d.log.Error().Err(r.err).Int("worker_id", id).Str("op", j.kind.String()).Msg("password hashing failed")
	}
	return r
}
