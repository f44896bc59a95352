package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all sidecar metrics instruments.
type Metrics struct {
	RequestDuration metric.Float64Histogram
	ViewDuration    metric.Float64Histogram
	StoreOpenErrors metric.Int64Counter
	DecodeDefaults  metric.Int64Counter
	PollDuration    metric.Float64Histogram
	PollFailures    metric.Int64Counter
	CatalogReloads  metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestDuration, err = meter.Float64Histogram("sidecar.request.duration",
		metric.WithDescription("Telemetry request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ViewDuration, err = meter.Float64Histogram("sidecar.view.duration",
		metric.WithDescription("Derived view computation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.StoreOpenErrors, err = meter.Int64Counter("sidecar.store.open_errors",
		metric.WithDescription("Failed attempts to open the state store"),
	)
	if err != nil {
		return nil, err
	}

	m.DecodeDefaults, err = meter.Int64Counter("sidecar.decode.defaults",
		metric.WithDescription("Embedded values that failed to parse and fell back to defaults"),
	)
	if err != nil {
		return nil, err
	}

	m.PollDuration, err = meter.Float64Histogram("sidecar.poll.duration",
		metric.WithDescription("Sync client poll duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.PollFailures, err = meter.Int64Counter("sidecar.poll.failures",
		metric.WithDescription("Sync client polls that failed"),
	)
	if err != nil {
		return nil, err
	}

	m.CatalogReloads, err = meter.Int64Counter("sidecar.catalog.reloads",
		metric.WithDescription("Marketplace catalog cache reloads"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
