package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"pettrace/internal/domain/reports"
	"pettrace/internal/platform/logger"
	"pettrace/internal/platform/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Sink reenvía eventos a un indexador externo (AMQP, webhook).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e RegistryEvent) error
}

const (
	defaultQueueSize    = 256
	defaultDeliverAfter = 10 * time.Second
)

type Options struct {
	Sinks   []Sink
	Logger  logger.Logger
	Metrics *metrics.Registry

	// QueueSize de entregas pendientes; si se llena se descarta la entrega (el evento queda guardado).
	QueueSize      int
	DeliverTimeout time.Duration
}

// Service guarda los eventos del registro y los reenvía a los sinks en segundo plano.
// Implementa reports.Publisher.
type Service struct {
	repo    Repository
	sinks   []Sink
	log     logger.Logger
	metrics *metrics.Registry
	now     func() time.Time
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan RegistryEvent
	wg     sync.WaitGroup
}

func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		sinks:   opts.Sinks,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
		timeout: opts.DeliverTimeout,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.timeout <= 0 {
		s.timeout = defaultDeliverAfter
	}

	if len(s.sinks) > 0 {
		size := opts.QueueSize
		if size <= 0 {
			size = defaultQueueSize
		}
		s.queue = make(chan RegistryEvent, size)
		s.wg.Add(1)
		go s.dispatch()
	}
	return s
}

var _ reports.Publisher = (*Service)(nil)

// Publish guarda el evento (append-only) y lo encola para los sinks.
func (s *Service) Publish(ctx context.Context, e reports.Event) error {
	if e.Type == "" {
		return ErrInvalidInput
	}

	rec := fromRegistry(uuid.NewString(), e, s.now().UTC())
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = rec.RecordedAt
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	s.metrics.ObserveEvent(string(rec.Type))

	s.enqueue(rec)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (RegistryEvent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return RegistryEvent{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByReport(ctx context.Context, reportID uint64, filter ListFilter) ([]RegistryEvent, error) {
	return s.repo.ListByReport(ctx, reportID, filter)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]RegistryEvent, error) {
	return s.repo.List(ctx, filter)
}

// Close drena la cola, espera al dispatcher y cierra los sinks que lo soporten.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	s.mu.Unlock()

	s.wg.Wait()

	var errs []error
	for _, sink := range s.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Service) enqueue(rec RegistryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue == nil || s.closed {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.metrics.ObserveSinkError("queue")
		s.log.Warn("event queue full, delivery dropped", map[string]any{
			"event_id":  rec.ID,
			"report_id": rec.ReportID,
			"type":      string(rec.Type),
		})
	}
}

func (s *Service) dispatch() {
	defer s.wg.Done()

	for rec := range s.queue {
		for _, sink := range s.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			err := sink.Deliver(ctx, rec)
			cancel()
			if err != nil {
				s.metrics.ObserveSinkError(sink.Name())
				s.log.Warn("event delivery failed", map[string]any{
					"sink":      sink.Name(),
					"event_id":  rec.ID,
					"report_id": rec.ReportID,
					"type":      string(rec.Type),
					"error":     err.Error(),
				})
			}
		}
	}
}
