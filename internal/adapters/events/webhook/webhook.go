// Package webhook reenvía los eventos del registro por HTTP POST.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pettrace/internal/domain/events"
	"pettrace/internal/platform/httpclient"
)

const EventTypeHeader = "X-PetTrace-Event"

type Sink struct {
	client *httpclient.Client
	url    string
}

var _ events.Sink = (*Sink)(nil)

func New(url string, timeout time.Duration, retries int) *Sink {
	return &Sink{
		client: httpclient.New(timeout, retries),
		url:    url,
	}
}

func (s *Sink) Name() string { return "webhook" }

func (s *Sink) Deliver(ctx context.Context, e events.RegistryEvent) error {
	headers := map[string]string{
		EventTypeHeader:   string(e.Type),
		"Idempotency-Key": e.ID,
	}
	if err := s.client.DoJSON(ctx, http.MethodPost, s.url, headers, events.NewEnvelope(e), nil); err != nil {
		return fmt.Errorf("webhook %s: %w", e.ID, err)
	}
	return nil
}
