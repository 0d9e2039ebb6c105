package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	recordsCreated   metric.Int64Counter
	authzDenied      metric.Int64Counter
	orgContextSet    metric.Int64Counter
	orgContextLeaked metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "opencrm"
	}
	meter := provider.Meter(name)

	recordsCreated, err := meter.Int64Counter("opencrm_records_created_total")
	if err != nil {
		return nil, err
	}
	authzDenied, err := meter.Int64Counter("opencrm_authorization_denied_total")
	if err != nil {
		return nil, err
	}
	orgContextSet, err := meter.Int64Counter("opencrm_org_context_set_total")
	if err != nil {
		return nil, err
	}
	orgContextLeaked, err := meter.Int64Counter("opencrm_org_context_leaked_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("opencrm_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("opencrm_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		recordsCreated:   recordsCreated,
		authzDenied:      authzDenied,
		orgContextSet:    orgContextSet,
		orgContextLeaked: orgContextLeaked,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordCreated increments the created-records counter for an entity.
func (m *Metrics) RecordCreated(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("entity", strings.TrimSpace(entity)))
	m.recordsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuthzDenied increments denied authorization decisions.
func (m *Metrics) RecordAuthzDenied(ctx context.Context, object, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("object", strings.TrimSpace(object)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.authzDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrgContextSet counts successful per-request org context switches.
func (m *Metrics) RecordOrgContextSet(ctx context.Context) {
	if m == nil {
		return
	}
	m.orgContextSet.Add(ctx, 1)
}

// RecordOrgContextLeaked counts failed org context resets. This counter
// must stay at zero; any increment is a security incident.
func (m *Metrics) RecordOrgContextLeaked(ctx context.Context) {
	if m == nil {
		return
	}
	m.orgContextLeaked.Add(ctx, 1)
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":      {},
	"endpoint":    {},
	"status_code": {},
	"entity":      {},
	"object":      {},
	"action":      {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
