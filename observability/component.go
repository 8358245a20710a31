package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/appcore/component"
	"github.com/kbukum/appcore/logger"
)

// Component owns the tracer and meter providers.
type Component struct {
	cfg     Config
	info    ServiceInfo
	log     *logger.Logger
	metrics *Metrics

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// NewComponent builds the telemetry component. Instruments are created on
// the global meter, which forwards to the OTLP provider once Start installs it.
func NewComponent(cfg Config, info ServiceInfo, log *logger.Logger) (*Component, error) {
	metrics, err := NewMetrics(Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	return &Component{
		cfg:     cfg,
		info:    info,
		log:     log.WithComponent("telemetry"),
		metrics: metrics,
	}, nil
}

func (c *Component) Name() string { return "telemetry" }

// Metrics returns the shared instruments.
func (c *Component) Metrics() *Metrics { return c.metrics }

func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Debug("Telemetry disabled")
		return nil
	}

	tp, err := InitTracer(ctx, c.cfg, c.info)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg, c.info)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}
	c.tp, c.mp = tp, mp

	c.log.Info("Telemetry initialized", map[string]interface{}{
		"endpoint":    c.cfg.Endpoint,
		"sample_rate": c.cfg.SampleRate,
		"interval":    c.cfg.MetricsInterval.String(),
	})
	return nil
}

// Stop flushes and shuts down both providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		c.tp = nil
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		c.mp = nil
	}
	return errors.Join(errs...)
}

func (c *Component) Health(ctx context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Details: map[string]interface{}{"enabled": c.cfg.Enabled},
	}
}

func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp http %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "OpenTelemetry", Type: "telemetry", Details: details}
}
