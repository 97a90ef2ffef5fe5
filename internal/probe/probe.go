package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
)

// Outcome classifies what a probe learned about a dataset's live source.
type Outcome string

const (
	// OutcomeSuccess means the endpoint answered and the payload is usable.
	OutcomeSuccess Outcome = "success"
	// OutcomeUnreachable means the endpoint exists but did not answer usefully.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeTimeout means the fetch ran out of its time budget.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeUnimplemented means no live path exists for the dataset: either
	// no endpoint is configured, or the endpoint answered but its payload is
	// not mapped to a record yet.
	OutcomeUnimplemented Outcome = "unimplemented"
)

// Result is the outcome of probing one dataset's live source.
type Result struct {
	Outcome Outcome
	// Payload holds the response body on Success, and also on Unimplemented
	// when the endpoint answered (connectivity verified, mapping pending).
	Payload []byte
	// Err carries the cause on Unreachable and Timeout.
	Err     error
	Elapsed time.Duration
}

// Fetchable reports whether the probe brought back bytes worth decoding.
func (r Result) Fetchable() bool {
	return (r.Outcome == OutcomeSuccess || r.Outcome == OutcomeUnimplemented) && len(r.Payload) > 0
}

// Prober fetches a dataset's live source.
type Prober interface {
	Probe(ctx context.Context, ds dataset.Dataset) Result
}

const maxPayloadBytes = 32 << 20

// HTTPProber fetches live dataset payloads over HTTP. The caller's context
// carries the time budget: the serving path and the refresh loop probe the
// same way but under different deadlines.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client:    &http.Client{},
		userAgent: "czkultura-dataserve/1.0",
	}
}

func (p *HTTPProber) Probe(ctx context.Context, ds dataset.Dataset) Result {
	start := time.Now()
	log := logger.WithDataset("probe", ds.Name)

	if !ds.HasEndpoint() {
		// No live source at all; nothing to contact.
		return Result{Outcome: OutcomeUnimplemented, Elapsed: time.Since(start)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ds.Endpoint, nil)
	if err != nil {
		return Result{Outcome: OutcomeUnreachable, Err: fmt.Errorf("build request: %w", err), Elapsed: time.Since(start)}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failure(log, err, start)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return p.failure(log, err, start)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %s from %s", resp.Status, ds.Endpoint)
		log.WithField("status", resp.StatusCode).Debug("probe rejected by endpoint")
		return Result{Outcome: OutcomeUnreachable, Err: err, Elapsed: time.Since(start)}
	}

	elapsed := time.Since(start)
	if !ds.LiveWired() {
		// The endpoint is alive but its payload has no mapping yet. Keep the
		// bytes so callers can still decode them against the snapshot layout.
		log.WithField("bytes", len(payload)).Debug("endpoint reachable, payload unmapped")
		return Result{Outcome: OutcomeUnimplemented, Payload: payload, Elapsed: elapsed}
	}

	log.WithField("bytes", len(payload)).Debug("probe succeeded")
	return Result{Outcome: OutcomeSuccess, Payload: payload, Elapsed: elapsed}
}

// failure classifies a transport error as timeout or unreachable.
func (p *HTTPProber) failure(log *logrus.Entry, err error, start time.Time) Result {
	outcome := OutcomeUnreachable
	if isTimeout(err) {
		outcome = OutcomeTimeout
	}
	log.WithError(err).Debug("probe failed")
	return Result{Outcome: outcome, Err: err, Elapsed: time.Since(start)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
