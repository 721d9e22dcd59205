package app

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

// Job tags. Jobs are keyed by (tag, identity).
const (
	TagFlags       = "flags"
	TagComplete    = "complete"
	TagUpdate      = "update"
	TagDeclaration = "declaration"
	TagClear       = "clear"
	TagHeaders     = "headers"
)

// highPriority tags drop pending lower-priority jobs for the same file.
var highPriority = map[string]bool{
	TagUpdate: true,
	TagClear:  true,
}

var (
	// ErrDropped is reported to a job that was replaced or overridden before
	// it started.
	ErrDropped = errors.New("job dropped by a newer request")
	// ErrPoolStopped is reported to jobs that never ran because the pool
	// stopped.
	ErrPoolStopped = errors.New("pool stopped")
)

// Job is one unit of work for the pool.
type Job struct {
	Tag      string
	Identity string
	Run      func(ctx context.Context) (interface{}, error)
}

// Outcome is delivered to a job's callback exactly once.
type Outcome struct {
	Value interface{}
	Err   error
	// Superseded is set when a newer job with the same key was submitted
	// while this one ran. The result is stale but complete.
	Superseded bool
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers    int   `json:"workers"`
	Pending    int   `json:"pending"`
	Running    int   `json:"running"`
	Completed  int64 `json:"completed"`
	Dropped    int64 `json:"dropped"`
	Superseded int64 `json:"superseded"`
}

type jobKey struct{ tag, identity string }

type pendingJob struct {
	Job
	seq  uint64
	done func(Outcome)
}

// Pool runs jobs on a fixed number of workers. A pending job is replaced by
// a newer one with the same key, so the last request wins.
type Pool struct {
	workers int
	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*pendingJob
	latest  map[jobKey]uint64
	seq     uint64
	running int
	stopped bool
	stats   PoolStats
}

// NewPool starts a pool. workers <= 0 uses the number of CPUs.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		log:     logger.With("component", "pool"),
		ctx:     ctx,
		cancel:  cancel,
		latest:  make(map[jobKey]uint64),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues job. done is called exactly once, from a worker goroutine
// or from Submit itself when the job is rejected.
func (p *Pool) Submit(job Job, done func(Outcome)) {
	if done == nil {
		done = func(Outcome) {}
	}
	key := jobKey{job.Tag, job.Identity}

	var dropped []*pendingJob
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		done(Outcome{Err: ErrPoolStopped})
		return
	}
	p.seq++
	pj := &pendingJob{Job: job, seq: p.seq, done: done}
	p.latest[key] = pj.seq

	replaced := false
	kept := p.queue[:0]
	for _, q := range p.queue {
		switch {
		case q.Tag == job.Tag && q.Identity == job.Identity:
			dropped = append(dropped, q)
			if !replaced {
				kept = append(kept, pj) // take the old slot
				replaced = true
			}
		case highPriority[job.Tag] && !highPriority[q.Tag] && q.Identity == job.Identity:
			dropped = append(dropped, q)
			if k := (jobKey{q.Tag, q.Identity}); p.latest[k] == q.seq {
				delete(p.latest, k)
			}
		default:
			kept = append(kept, q)
		}
	}
	p.queue = kept
	if !replaced {
		p.queue = append(p.queue, pj)
	}
	p.stats.Dropped += int64(len(dropped))
	p.mu.Unlock()
	p.cond.Signal()

	for _, d := range dropped {
		p.log.Debug("job dropped", "tag", d.Tag, "file", d.Identity, "by", job.Tag)
		d.done(Outcome{Err: ErrDropped})
	}
}

// Do submits a job and waits for its outcome or for ctx to end. When ctx
// ends first the job keeps running and its result is discarded.
func (p *Pool) Do(ctx context.Context, tag, identity string, run func(ctx context.Context) (interface{}, error)) Outcome {
	ch := make(chan Outcome, 1)
	p.Submit(Job{Tag: tag, Identity: identity, Run: run}, func(o Outcome) { ch <- o })
	select {
	case o := <-ch:
		return o
	case <-ctx.Done():
		return Outcome{Err: ctx.Err()}
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		pj := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		value, err := p.run(pj)

		key := jobKey{pj.Tag, pj.Identity}
		p.mu.Lock()
		p.running--
		p.stats.Completed++
		superseded := p.latest[key] != pj.seq
		if superseded {
			p.stats.Superseded++
		} else {
			delete(p.latest, key)
		}
		p.mu.Unlock()

		pj.done(Outcome{Value: value, Err: err, Superseded: superseded})
	}
}

// run executes one job, turning a panic into an error.
func (p *Pool) run(pj *pendingJob) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", "tag", pj.Tag, "file", pj.Identity, "panic", r)
			value, err = nil, errors.New("job panicked")
		}
	}()
	return pj.Run(p.ctx)
}

// Stop rejects pending jobs, cancels the context of running ones and waits
// for the workers to exit. Idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.cancel()
	for _, pj := range pending {
		pj.done(Outcome{Err: ErrPoolStopped})
	}
	p.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Workers = p.workers
	s.Pending = len(p.queue)
	s.Running = p.running
	return s
}
