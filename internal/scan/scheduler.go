package scan

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"filescan-service/internal/logger"
)

// taskPool runs deferred scan transitions detached from the request path.
type taskPool struct {
	workerCount int
	jobChan     chan func(context.Context)
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func newTaskPool(workerCount, queueSize int) *taskPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < workerCount {
		queueSize = workerCount * 2
	}
	return &taskPool{
		workerCount: workerCount,
		jobChan:     make(chan func(context.Context), queueSize),
		log:         logger.Get(),
	}
}

func (p *taskPool) Start(ctx context.Context) {
	p.log.Info().Int("worker_count", p.workerCount).Msg("Starting scan task pool")

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *taskPool) Stop() {
	close(p.jobChan)
	p.wg.Wait()
	p.log.Info().Msg("Scan task pool stopped")
}

func (p *taskPool) Submit(job func(context.Context)) {
	select {
	case p.jobChan <- job:
	default:
		p.log.Warn().Msg("Scan task queue full, task dropped")
	}
}

func (p *taskPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Scan worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Scan worker stopping due to context cancellation")
			return
		case job, ok := <-p.jobChan:
			if !ok {
				log.Debug().Msg("Scan worker stopping due to closed job channel")
				return
			}
			job(ctx)
		}
	}
}
