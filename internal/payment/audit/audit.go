// Package audit records every call to a payment provider.
package audit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/config"
)

const indexTimeout = 5 * time.Second

// Event is one provider call.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Gateway     string    `json:"gateway"`
	Op          string    `json:"op"`
	PaymentUUID string    `json:"payment_id"`
	Reference   string    `json:"reference,omitempty"`
	Status      string    `json:"status,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
}

// Auditor stores events. Implementations must not fail the payment flow.
type Auditor interface {
	Record(ctx context.Context, e Event)
}

// Nop drops all events.
type Nop struct{}

// Record implements Auditor.
func (Nop) Record(context.Context, Event) {}

// OpenSearch indexes events, one document per event.
type OpenSearch struct {
	client *opensearch.Client
	index  string
}

// New returns the auditor configured in cfg, Nop when OpenSearch is disabled.
func New(cfg config.Audit) (Auditor, error) {
	if !cfg.OpenSearch.Enabled {
		return Nop{}, nil
	}

	return NewOpenSearch(cfg.OpenSearch)
}

// NewOpenSearch connects to the cluster in cfg.
func NewOpenSearch(cfg config.OpenSearch) (*OpenSearch, error) {
	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec
		},
		MaxRetries:    2,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.Username != "" {
		osCfg.Username = cfg.Username
		osCfg.Password = cfg.Password
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	return &OpenSearch{client: client, index: cfg.Index}, nil
}

// Record implements Auditor. Indexing errors are logged only.
func (o *OpenSearch) Record(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if err := o.store(ctx, e); err != nil {
		log.Warn().Err(err).Str("payment", e.PaymentUUID).Str("op", e.Op).Msg("failed to index payment audit event")
	}
}

func (o *OpenSearch) store(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
	defer cancel()

	req := opensearchapi.IndexRequest{
		Index: o.index,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, o.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch: %s", res.String())
	}

	return nil
}
