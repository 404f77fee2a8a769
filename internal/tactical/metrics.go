package tactical

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/thebtf/laboveda/pkg/models"
)

// instrumentationName scopes every instrument the engine creates.
const instrumentationName = "github.com/thebtf/laboveda/internal/tactical"

// Metrics holds the engine's OpenTelemetry instruments.
type Metrics struct {
	assetRecomputes      metric.Int64Counter
	collectionRecomputes metric.Int64Counter
	inconsistentStates   metric.Int64Counter
	identities           metric.Int64Counter
	promotions           metric.Int64Counter
	links                metric.Int64Counter
	recalibrations       metric.Float64Histogram
}

// NewMetrics creates the instruments on meter. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{}
	var err error
	if m.assetRecomputes, err = meter.Int64Counter("tactical.asset.recomputes",
		metric.WithDescription("Asset score recomputations, by resulting tier")); err != nil {
		return nil, err
	}
	if m.collectionRecomputes, err = meter.Int64Counter("tactical.matrix.recomputes",
		metric.WithDescription("Matrix rollup recomputations")); err != nil {
		return nil, err
	}
	if m.inconsistentStates, err = meter.Int64Counter("tactical.inconsistent_states",
		metric.WithDescription("Writes whose aggregate cascade failed on a non-atomic store")); err != nil {
		return nil, err
	}
	if m.identities, err = meter.Int64Counter("tactical.identities.issued",
		metric.WithDescription("Asset identities reserved")); err != nil {
		return nil, err
	}
	if m.promotions, err = meter.Int64Counter("tactical.nodes.promoted",
		metric.WithDescription("Orphan nodes promoted into new assets")); err != nil {
		return nil, err
	}
	if m.links, err = meter.Int64Counter("tactical.nodes.linked",
		metric.WithDescription("Nodes linked to existing assets")); err != nil {
		return nil, err
	}
	if m.recalibrations, err = meter.Float64Histogram("tactical.recalibration.duration",
		metric.WithDescription("Bulk recalibration wall time"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

func (m *Metrics) assetRecomputed(ctx context.Context, tier models.RarityTier) {
	m.assetRecomputes.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", string(tier))))
}

func (m *Metrics) collectionRecomputed(ctx context.Context) {
	m.collectionRecomputes.Add(ctx, 1)
}

func (m *Metrics) inconsistent(ctx context.Context, op string) {
	m.inconsistentStates.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) identityIssued(ctx context.Context) {
	m.identities.Add(ctx, 1)
}

func (m *Metrics) promoted(ctx context.Context) {
	m.promotions.Add(ctx, 1)
}

func (m *Metrics) linked(ctx context.Context, n int64) {
	m.links.Add(ctx, n)
}

func (m *Metrics) recalibrationDone(ctx context.Context, elapsed time.Duration, clean bool) {
	m.recalibrations.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("clean", clean)))
}
