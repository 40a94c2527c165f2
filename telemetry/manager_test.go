package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testService = "translation-manager"

type ManagerSuite struct {
	suite.Suite

	spans   *tracetest.InMemoryExporter
	reader  *sdkmetric.ManualReader
	manager *manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	ctx := context.Background()
	s.spans = tracetest.NewInMemoryExporter()
	s.reader = sdkmetric.NewManualReader()

	m := NewManager(ctx, nil,
		WithServiceName(testService),
		WithServiceVersion("1.2.3"),
		WithServiceEnvironment("test"),
		WithTraceExporter(s.spans),
		WithTraceSampler(sdktrace.AlwaysSample()),
		WithMetricsReader(s.reader),
	)
	s.Require().NoError(m.Init(ctx))
	s.manager = m.(*manager)
}

func (s *ManagerSuite) TearDownTest() {
	s.Require().NoError(s.manager.Shutdown(context.Background()))
}

func (s *ManagerSuite) TestOptionsTagResource() {
	s.Equal(testService, s.manager.serviceName)
	s.Equal("1.2.3", s.manager.serviceVersion)
	s.Equal("test", s.manager.serviceEnvironment)
	s.False(s.manager.Disabled())
}

func (s *ManagerSuite) TestNoLogHandlerWithoutExporter() {
	s.T().Setenv("OTEL_LOGS_EXPORTER", "")
	ctx := context.Background()

	m := NewManager(ctx, nil,
		WithTraceExporter(tracetest.NewInMemoryExporter()),
		WithMetricsReader(sdkmetric.NewManualReader()))
	s.Require().NoError(m.Init(ctx))
	defer func() { s.Require().NoError(m.Shutdown(ctx)) }()

	s.Nil(m.LogHandler())
}

func (s *ManagerSuite) TestTracerRecordsSpans() {
	ctx := context.Background()
	tracer := NewTracer(testService)

	okCtx, okSpan := tracer.Start(ctx, "ExportTranslations")
	tracer.End(okCtx, okSpan, nil)

	errCtx, errSpan := tracer.Start(ctx, "ImportTranslations")
	tracer.End(errCtx, errSpan, errors.New("broken file"))

	s.Require().NoError(s.manager.tracerProvider.ForceFlush(ctx))

	spans := s.spans.GetSpans()
	s.Require().Len(spans, 2)

	s.Equal("ExportTranslations", spans[0].Name)
	s.Equal(codes.Ok, spans[0].Status.Code)

	s.Equal("ImportTranslations", spans[1].Name)
	s.Equal(codes.Error, spans[1].Status.Code)
	s.Equal("broken file", spans[1].Status.Description)
	s.Contains(spans[1].Attributes, AttrErrorKey.String("broken file"))
}

func (s *ManagerSuite) TestTracerRecordsLatency() {
	ctx := context.Background()
	tracer := NewTracer(testService)

	spanCtx, span := tracer.Start(ctx, "FindTranslations")
	tracer.End(spanCtx, span, nil)

	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.reader.Collect(ctx, &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	s.True(names[testService+"/latency"], "metrics: %v", names)
	s.True(names[testService+"/completed_calls"], "metrics: %v", names)
}

func TestDisabledManagerIsInert(t *testing.T) {
	ctx := context.Background()
	m := NewManager(ctx, nil, WithDisableTracing())

	require.True(t, m.Disabled())
	require.NoError(t, m.Init(ctx))
	require.Nil(t, m.LogHandler())
	require.NoError(t, m.Shutdown(ctx))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "deadline", err: context.DeadlineExceeded, want: "deadline exceeded"},
		{name: "other", err: errors.New("boom"), want: "err"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
