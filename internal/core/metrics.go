package core

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/go-chi/chi/v5"

	"atmos/internal/types"
)

// unmatchedRoute is the endpoint dimension for requests no route matched.
const unmatchedRoute = "unmatched"

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const (
	// metricsQueueSize bounds the datums waiting for publication. When the
	// queue is full new datums are dropped rather than delaying a response.
	metricsQueueSize = 512

	// metricsPublishTimeout bounds one PutMetricData call.
	metricsPublishTimeout = 2 * time.Second
)

// MetricsFlusher is implemented by collectors that publish asynchronously.
// The Lambda adapter flushes after each invocation because the runtime may
// freeze the process as soon as the handler returns.
type MetricsFlusher interface {
	Flush(ctx context.Context) error
}

type metricsJob struct {
	ctx   context.Context
	input *cloudwatch.PutMetricDataInput

	// done, when set, marks a flush point and is closed once every job
	// queued before it has been published.
	done chan struct{}
}

// CloudWatchMetrics implements MetricsCollector. RecordRequest only queues
// the datums; a single background goroutine publishes them, so a slow or
// stalled CloudWatch never holds up a response.
//
// Metrics emitted:
//   - APIRequestCount: Dims {Method, Endpoint, Status}
//   - APILatency:      Dims {Method, Endpoint} in milliseconds
type CloudWatchMetrics struct {
	client         CloudWatchClient
	namespace      string
	logger         *slog.Logger
	publishTimeout time.Duration

	queue     chan metricsJob
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

var (
	_ MetricsCollector = (*CloudWatchMetrics)(nil)
	_ MetricsFlusher   = (*CloudWatchMetrics)(nil)
)

// NewCloudWatchMetrics creates a collector publishing to namespace and starts
// its publisher. An empty namespace falls back to types.MetricNamespace.
// Call Close to drain and stop it.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return newCloudWatchMetrics(client, namespace, logger, metricsPublishTimeout)
}

func newCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger, publishTimeout time.Duration) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &CloudWatchMetrics{
		client:         client,
		namespace:      namespace,
		logger:         logger,
		publishTimeout: publishTimeout,
		queue:          make(chan metricsJob, metricsQueueSize),
		closing:        make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	go m.run()
	return m
}

// RecordRequest queues the request count and latency datums and returns
// immediately.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, method, endpoint, status string, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricAPIRequestCount),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimMethod), Value: aws.String(method)},
					{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
					{Name: aws.String(types.DimStatus), Value: aws.String(status)},
				},
			},
			{
				MetricName: aws.String(types.MetricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimMethod), Value: aws.String(method)},
					{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
				},
			},
		},
	}

	// The request context is cancelled once the response is written.
	job := metricsJob{ctx: context.WithoutCancel(ctx), input: input}
	select {
	case m.queue <- job:
	default:
		m.logger.Warn("metrics queue full, dropping request metric",
			"method", method,
			"endpoint", endpoint,
			"status", status,
		)
	}
}

// Flush waits until every datum recorded before the call has been published
// or has failed, or until ctx is done.
func (m *CloudWatchMetrics) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case m.queue <- metricsJob{done: done}:
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close publishes what is already queued and stops the publisher. Datums
// recorded after Close are discarded.
func (m *CloudWatchMetrics) Close(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.closing) })
	select {
	case <-m.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *CloudWatchMetrics) run() {
	defer close(m.stopped)
	for {
		select {
		case job := <-m.queue:
			m.handle(job)
		case <-m.closing:
			for {
				select {
				case job := <-m.queue:
					m.handle(job)
				default:
					return
				}
			}
		}
	}
}

func (m *CloudWatchMetrics) handle(job metricsJob) {
	if job.input != nil {
		m.publish(job.ctx, job.input)
	}
	if job.done != nil {
		close(job.done)
	}
}

func (m *CloudWatchMetrics) publish(parent context.Context, input *cloudwatch.PutMetricDataInput) {
	ctx, cancel := context.WithTimeout(parent, m.publishTimeout)
	defer cancel()

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		dims := input.MetricData[0].Dimensions
		m.logger.Error("failed to record request metric",
			"error", err.Error(),
			"method", aws.ToString(dims[0].Value),
			"endpoint", aws.ToString(dims[1].Value),
			"status", aws.ToString(dims[2].Value),
		)
	}
}

// routePattern returns the chi route pattern matched for r, such as
// "/weather", or unmatchedRoute.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
