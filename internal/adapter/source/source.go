// Package source implements the upstream extractors. Each one fetches a
// single municipal site or API and normalizes it into records.
package source

import (
	"context"
	"log/slog"

	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
)

// Source names, used as log attributes and metric labels.
const (
	NameIzmirAPI    = "izmir_api"
	NameIzmirWeb    = "izmir_web"
	NameAnkaraWeb   = "ankara_web"
	NameIstanbulWeb = "istanbul_web"
)

type extractFunc func(ctx context.Context) ([]domain.Record, error)

// Source wraps one upstream. Extract never fails: transport errors, parse
// errors and panics all degrade to an empty result.
type Source struct {
	name    string
	city    string
	extract extractFunc
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newSource(name, city string, fn extractFunc, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return &Source{
		name:    name,
		city:    city,
		extract: fn,
		logger:  logger.With("source", name),
		metrics: metrics,
	}
}

// Name identifies the source.
func (s *Source) Name() string { return s.name }

// City is the city every record of this source belongs to.
func (s *Source) City() string { return s.city }

// Extract fetches and normalizes the source. The result is never nil.
func (s *Source) Extract(ctx context.Context) (records []domain.Record) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("source panicked", "panic", r)
			s.metrics.SourceFailures.WithLabelValues(s.name).Inc()
			records = []domain.Record{}
		}
		s.metrics.SourceRecords.WithLabelValues(s.name).Set(float64(len(records)))
	}()

	recs, err := s.extract(ctx)
	if err != nil {
		s.logger.Warn("source extraction failed", "city", s.city, "error", err)
		s.metrics.SourceFailures.WithLabelValues(s.name).Inc()
		return []domain.Record{}
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	s.logger.Info("source extracted", "city", s.city, "records", len(recs))
	return recs
}
