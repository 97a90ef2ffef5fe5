package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/snapshot"
)

// ErrUnavailable is returned when neither the live source nor the local
// snapshot can produce a record for a dataset.
var ErrUnavailable = errors.New("dataset unavailable")

// SnapshotReader is the slice of the snapshot store the resolver needs.
type SnapshotReader interface {
	Read(ds dataset.Dataset) (dataset.Record, error)
}

// Resolver produces a record for a dataset by trying the live source first
// and falling back to the local snapshot. Any live failure, including a
// payload the transform rejects, degrades to the snapshot; only when both
// paths fail does the caller see ErrUnavailable.
type Resolver struct {
	prober       probe.Prober
	store        SnapshotReader
	probeTimeout time.Duration
}

func NewResolver(prober probe.Prober, store SnapshotReader, probeTimeout time.Duration) *Resolver {
	return &Resolver{
		prober:       prober,
		store:        store,
		probeTimeout: probeTimeout,
	}
}

func (r *Resolver) Resolve(ctx context.Context, ds dataset.Dataset) (dataset.Record, error) {
	log := logger.WithDataset("resolver", ds.Name)

	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	res := r.prober.Probe(pctx, ds)
	cancel()

	switch res.Outcome {
	case probe.OutcomeSuccess:
		rec, err := ds.Transform(res.Payload)
		if err == nil {
			log.WithField("elapsed", res.Elapsed.String()).Debug("serving live record")
			return rec, nil
		}
		log.WithError(err).Warn("live payload rejected, falling back to snapshot")
	case probe.OutcomeUnimplemented:
		log.Debug("no usable live path, trying snapshot")
	default:
		log.WithError(res.Err).WithField("outcome", string(res.Outcome)).
			Info("live source failed, trying snapshot")
	}

	rec, err := r.store.Read(ds)
	if err == nil {
		log.Debug("serving snapshot record")
		return rec, nil
	}

	var decodeErr *snapshot.DecodeError
	if errors.As(err, &decodeErr) {
		log.WithError(err).Error("snapshot corrupt")
	} else if !errors.Is(err, snapshot.ErrNotFound) {
		log.WithError(err).Error("snapshot read failed")
	}
	return nil, fmt.Errorf("%s: %w", ds.Name, ErrUnavailable)
}
