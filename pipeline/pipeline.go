package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/RyanBlaney/sonido-corpus/corpus"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

var (
	// ErrClosed is returned by NextBatch once the pipeline is shut down and
	// its slot is empty.
	ErrClosed = errors.New("pipeline: closed")
	// ErrNotStarted is returned by NextBatch before Start.
	ErrNotStarted = errors.New("pipeline: not started")
)

// Producer builds the next batch
type Producer interface {
	Produce(ctx context.Context) (*corpus.Batch, error)
}

// ProducerFunc adapts a function to Producer
type ProducerFunc func(ctx context.Context) (*corpus.Batch, error)

// Produce calls f(ctx)
func (f ProducerFunc) Produce(ctx context.Context) (*corpus.Batch, error) {
	return f(ctx)
}

// PanicError wraps a panic recovered from the producer.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pipeline: producer panicked: %v", e.Value)
}

// Pipeline runs one producer goroutine ahead of a single consumer. It holds
// at most one finished batch; the producer waits for the slot to empty
// before it builds the next one. A producer failure is parked in the slot in
// place of a batch and the worker carries on.
type Pipeline struct {
	producer Producer
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	batch    *corpus.Batch
	err      error
	started  bool
	stopping bool
	exited   bool

	produced int
	failed   int
}

// New creates a pipeline around producer. Call Start to launch the worker.
func New(producer Producer, logger logging.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		producer: producer,
		logger: logging.Or(logger).WithFields(logging.Fields{
			"component": "batch_pipeline",
		}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the worker goroutine. Calling it again, or after Shutdown,
// has no effect.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopping {
		return
	}
	p.started = true
	go p.run()
}

func (p *Pipeline) run() {
	p.logger.Debug("Batch worker started")
	defer func() {
		p.mu.Lock()
		p.exited = true
		p.cond.Broadcast()
		p.mu.Unlock()
		close(p.done)
		p.logger.Debug("Batch worker stopped")
	}()

	for {
		p.mu.Lock()
		for (p.batch != nil || p.err != nil) && !p.stopping {
			p.cond.Wait()
		}
		if p.stopping {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		batch, err := p.produce()

		p.mu.Lock()
		if err != nil {
			p.failed++
			p.err = err
			p.logger.Error(err, "Failed to produce batch")
		} else {
			p.produced++
			p.batch = batch
		}
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

func (p *Pipeline) produce() (batch *corpus.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	batch, err = p.producer.Produce(p.ctx)
	if err == nil && batch == nil {
		err = errors.New("pipeline: producer returned no batch")
	}
	return batch, err
}

// NextBatch takes the batch out of the slot, blocking until one is ready.
// A parked producer error is returned instead of a batch. NextBatch returns
// ctx.Err() when ctx ends first and ErrClosed once the pipeline is shut
// down and drained.
func (p *Pipeline) NextBatch(ctx context.Context) (*corpus.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for {
		if p.batch != nil {
			batch := p.batch
			p.batch = nil
			p.cond.Broadcast()
			return batch, nil
		}
		if p.err != nil {
			err := p.err
			p.err = nil
			p.cond.Broadcast()
			return nil, err
		}
		if p.exited || (p.stopping && !p.started) {
			return nil, ErrClosed
		}
		if !p.started {
			return nil, ErrNotStarted
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.cond.Wait()
	}
}

// Shutdown stops the worker after its current batch and waits for it to
// exit. A batch left in the slot can still be taken with NextBatch.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	p.stopping = true
	started := p.started
	p.cond.Broadcast()
	p.mu.Unlock()

	if started {
		<-p.done
	}
	p.cancel()

	p.mu.Lock()
	p.logger.Info("Batch pipeline shut down", logging.Fields{
		"produced": p.produced,
		"failed":   p.failed,
		"pending":  p.batch != nil,
	})
	p.mu.Unlock()
}
