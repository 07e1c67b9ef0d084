package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("cancel worker pool is closed")

// CancelRequest asks to cancel a user's pending links.
type CancelRequest struct {
	UserID  string
	LinkIDs []string
}

// CancelService performs the cancellation against storage.
type CancelService interface {
	CancelUserLinks(ctx context.Context, userID string, ids []string) error
}

type Config struct {
	WorkerCount  int
	BufferSize   int
	BatchSize    int           // link ids collected before a flush
	BatchTimeout time.Duration // max time a request waits in a batch
	CallTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		WorkerCount:  5,
		BufferSize:   100,
		BatchSize:    10,
		BatchTimeout: 5 * time.Second,
		CallTimeout:  10 * time.Second,
	}
}

// CancelWorkerPool cancels links asynchronously, grouping requests per user.
type CancelWorkerPool struct {
	service  CancelService
	requests chan CancelRequest
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewCancelWorkerPool(service CancelService, cfg Config) *CancelWorkerPool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &CancelWorkerPool{
		service:  service,
		requests: make(chan CancelRequest, cfg.BufferSize),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *CancelWorkerPool) Start() {
	log.Info().
		Int("workers", p.cfg.WorkerCount).
		Int("batchSize", p.cfg.BatchSize).
		Dur("batchTimeout", p.cfg.BatchTimeout).
		Msg("Starting cancel worker pool")

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// batch accumulates link ids per user until it is flushed.
type batch struct {
	ids   map[string][]string
	total int
}

func (b *batch) add(req CancelRequest) {
	if b.ids == nil {
		b.ids = make(map[string][]string)
	}
	b.ids[req.UserID] = append(b.ids[req.UserID], req.LinkIDs...)
	b.total += len(req.LinkIDs)
}

func (b *batch) empty() bool {
	return len(b.ids) == 0
}

func (p *CancelWorkerPool) run(workerID int) {
	defer p.wg.Done()

	var (
		pending batch
		timer   *time.Timer
		timeout <-chan time.Time
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timeout = nil
	}

	flush := func() {
		stopTimer()
		p.flush(workerID, pending)
		pending = batch{}
	}

	for {
		select {
		case <-p.ctx.Done():
			flush()
			return

		case req, ok := <-p.requests:
			if !ok {
				flush()
				return
			}

			wasEmpty := pending.empty()
			pending.add(req)

			if pending.total >= p.cfg.BatchSize {
				flush()
				continue
			}

			if wasEmpty {
				if timer == nil {
					timer = time.NewTimer(p.cfg.BatchTimeout)
				} else {
					timer.Reset(p.cfg.BatchTimeout)
				}
				timeout = timer.C
			}

		case <-timeout:
			timeout = nil
			p.flush(workerID, pending)
			pending = batch{}
		}
	}
}

func (p *CancelWorkerPool) flush(workerID int, b batch) {
	for userID, ids := range b.ids {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CallTimeout)
		err := p.service.CancelUserLinks(ctx, userID, ids)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Int("workerID", workerID).
				Str("userID", userID).
				Int("linkCount", len(ids)).
				Msg("Failed to cancel user links")
			continue
		}

		log.Debug().
			Int("workerID", workerID).
			Str("userID", userID).
			Int("linkCount", len(ids)).
			Msg("Cancelled user links")
	}
}

// Submit queues a cancellation. It blocks while the queue is full.
func (p *CancelWorkerPool) Submit(userID string, linkIDs []string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	req := CancelRequest{UserID: userID, LinkIDs: linkIDs}
	select {
	case p.requests <- req:
		return nil
	default:
	}

	log.Warn().
		Str("userID", userID).
		Int("linkCount", len(linkIDs)).
		Msg("Cancel queue is full, blocking")

	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.requests <- req:
		return nil
	}
}

// Shutdown stops accepting requests and waits for queued ones to be
// processed. After timeout the workers are stopped and
// context.DeadlineExceeded is returned.
func (p *CancelWorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.requests)
	p.mu.Unlock()

	log.Info().Msg("Shutting down cancel worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Info().Msg("Cancel worker pool shut down gracefully")
		return nil
	case <-time.After(timeout):
		log.Warn().Msg("Cancel worker pool shutdown timeout, forcing shutdown")
		p.cancel()
		<-done
		return context.DeadlineExceeded
	}
}

type PoolStats struct {
	QueueSize   int
	QueueCap    int
	WorkerCount int
}

func (p *CancelWorkerPool) Stats() PoolStats {
	return PoolStats{
		QueueSize:   len(p.requests),
		QueueCap:    cap(p.requests),
		WorkerCount: p.cfg.WorkerCount,
	}
}
