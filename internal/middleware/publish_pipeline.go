package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	applogger "QuantLens/pkg/logger"
	"QuantLens/pkg/metrics"
)

// ErrBufferFull is returned when a failed publish cannot be queued for retry.
var ErrBufferFull = errors.New("publish buffer full")

// PublishPipeline sits between the scan flow and a downstream publisher.
// It validates, throttles per strategy and buffers results while downstream is unavailable.
type PublishPipeline struct {
	next     domrepo.RecommendationPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	maxRPS   int
	bufSize  int
	timeout  time.Duration
	bufCh    chan *models.ScanResult
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-strategy last accepted time
	now      func() time.Time
	sleep    func(time.Duration)
}

var _ domrepo.RecommendationPublisher = (*PublishPipeline)(nil)

type PipelineOption func(*PublishPipeline)

// WithMaxRPS caps published scans per second per strategy. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *PublishPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *PublishPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithPublishTimeout bounds each downstream attempt.
func WithPublishTimeout(d time.Duration) PipelineOption {
	return func(p *PublishPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *PublishPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *PublishPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewPublishPipeline creates a new pipeline in front of next.
func NewPublishPipeline(next domrepo.RecommendationPublisher, opts ...PipelineOption) *PublishPipeline {
	p := &PublishPipeline{
		next:     next,
		metrics:  metrics.Nop{},
		l:        applogger.Nop(),
		bufSize:  256,
		timeout:  5 * time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ScanResult, p.bufSize)
	return p
}

// Start launches background redelivery of buffered results.
// A stopped pipeline cannot be restarted.
func (p *PublishPipeline) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.redeliver()
}

func (p *PublishPipeline) redeliver() {
	defer close(p.doneCh)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case r := <-p.bufCh:
			if err := p.publish(r); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_redeliver")
				p.sleep(backoff)
				select {
				case p.bufCh <- r:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
					p.l.Warn("dropping buffered scan", applogger.String("scan_id", r.ID), applogger.Error(err))
				}
			} else {
				backoff = 50 * time.Millisecond
			}
		}
	}
}

// Stop ends redelivery and reports how many results were still buffered.
func (p *PublishPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}
	close(p.stopCh)

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return fmt.Errorf("stop publish pipeline: %w", ctx.Err())
	}
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("publish pipeline stopped with buffered scans", applogger.Int("pending", n))
	}
	return nil
}

// Pending returns the number of results waiting for redelivery.
func (p *PublishPipeline) Pending() int { return len(p.bufCh) }

// PublishScan validates, throttles and forwards r, buffering it when downstream fails.
func (p *PublishPipeline) PublishScan(ctx context.Context, r *models.ScanResult) error {
	if r == nil {
		return nil
	}
	if err := validateScan(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(r.Strategy, p.now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.publishCtx(ctx, r); err != nil {
		p.metrics.RecordError("pipeline_publish")
		select {
		case p.bufCh <- r:
			p.l.Debug("scan buffered for redelivery",
				applogger.String("scan_id", r.ID),
				applogger.Int("depth", len(p.bufCh)),
				applogger.Error(err),
			)
			return nil
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			return fmt.Errorf("%w: %v", ErrBufferFull, err)
		}
	}
	return nil
}

func (p *PublishPipeline) publish(r *models.ScanResult) error {
	return p.publishCtx(context.Background(), r)
}

func (p *PublishPipeline) publishCtx(ctx context.Context, r *models.ScanResult) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.next.PublishScan(ctx, r)
}

func validateScan(r *models.ScanResult) error {
	if r.ID == "" {
		return fmt.Errorf("scan id empty")
	}
	if r.Strategy == "" {
		return fmt.Errorf("scan strategy empty")
	}
	return nil
}

func (p *PublishPipeline) allow(strategy string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[strategy]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[strategy] = now
	return true
}
