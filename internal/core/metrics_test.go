package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/go-chi/chi/v5"

	"atmos/internal/types"
)

type mockCloudWatchClient struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func (m *mockCloudWatchClient) published() []*cloudwatch.PutMetricDataInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*cloudwatch.PutMetricDataInput(nil), m.inputs...)
}

// stallingClient blocks every call until release is closed or the call's
// context ends.
type stallingClient struct {
	release chan struct{}
	calls   chan context.Context
}

func newStallingClient() *stallingClient {
	return &stallingClient{release: make(chan struct{}), calls: make(chan context.Context, 16)}
}

func (c *stallingClient) PutMetricData(ctx context.Context, _ *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.calls <- ctx
	select {
	case <-c.release:
		return &cloudwatch.PutMetricDataOutput{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestMetrics(t *testing.T, client CloudWatchClient, namespace string) *CloudWatchMetrics {
	t.Helper()
	logger, _ := newBufferedLogger()
	m := NewCloudWatchMetrics(client, namespace, logger)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func flush(t *testing.T, m *CloudWatchMetrics) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func dimensions(d cwtypes.MetricDatum) map[string]string {
	out := make(map[string]string, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		out[aws.ToString(dim.Name)] = aws.ToString(dim.Value)
	}
	return out
}

func TestCloudWatchMetrics_RecordRequest(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := newTestMetrics(t, client, "AtmosTest")

	m.RecordRequest(context.Background(), "GET", "/weather", "200", 150*time.Millisecond)
	flush(t, m)

	inputs := client.published()
	if len(inputs) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(inputs))
	}
	in := inputs[0]
	if aws.ToString(in.Namespace) != "AtmosTest" {
		t.Errorf("namespace = %q", aws.ToString(in.Namespace))
	}
	if len(in.MetricData) != 2 {
		t.Fatalf("expected 2 datums, got %d", len(in.MetricData))
	}

	count, latency := in.MetricData[0], in.MetricData[1]
	if aws.ToString(count.MetricName) != types.MetricAPIRequestCount || aws.ToFloat64(count.Value) != 1 {
		t.Errorf("unexpected count datum %+v", count)
	}
	if dims := dimensions(count); dims[types.DimMethod] != "GET" || dims[types.DimEndpoint] != "/weather" || dims[types.DimStatus] != "200" {
		t.Errorf("count dimensions = %v", dims)
	}
	if aws.ToString(latency.MetricName) != types.MetricAPILatency || aws.ToFloat64(latency.Value) != 150 {
		t.Errorf("unexpected latency datum %+v", latency)
	}
	if latency.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("latency unit = %s", latency.Unit)
	}
	if _, ok := dimensions(latency)[types.DimStatus]; ok {
		t.Error("latency should not carry the status dimension")
	}
}

func TestCloudWatchMetrics_DefaultNamespace(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := newTestMetrics(t, client, "")
	m.RecordRequest(context.Background(), "GET", "/health", "200", time.Millisecond)
	flush(t, m)

	if got := aws.ToString(client.published()[0].Namespace); got != types.MetricNamespace {
		t.Errorf("namespace = %q, want %q", got, types.MetricNamespace)
	}
}

func TestCloudWatchMetrics_ErrorIsLoggedNotReturned(t *testing.T) {
	logger, buf := newBufferedLogger()
	client := &mockCloudWatchClient{err: errors.New("throttled")}
	m := NewCloudWatchMetrics(client, "Atmos", logger)

	m.RecordRequest(context.Background(), "GET", "/forecast", "502", time.Second)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "failed to record request metric") || !strings.Contains(out, "throttled") || !strings.Contains(out, `"endpoint":"/forecast"`) {
		t.Errorf("expected failure to be logged, got %s", out)
	}
}

type ctxCapturingClient struct {
	mu          sync.Mutex
	errAtCall   error
	hasDeadline bool
	requestID   string
}

func (c *ctxCapturingClient) PutMetricData(ctx context.Context, _ *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errAtCall = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
	c.requestID = types.GetRequestID(ctx)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchMetrics_PublishContext(t *testing.T) {
	client := &ctxCapturingClient{}
	m := newTestMetrics(t, client, "Atmos")

	ctx, cancel := context.WithCancel(types.WithRequestID(context.Background(), "req-7"))
	cancel()
	m.RecordRequest(ctx, "GET", "/weather", "200", time.Millisecond)
	flush(t, m)

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.errAtCall != nil {
		t.Errorf("publish inherited request cancellation: %v", client.errAtCall)
	}
	if !client.hasDeadline {
		t.Error("publish context should carry a deadline")
	}
	if client.requestID != "req-7" {
		t.Errorf("request values should survive, got request ID %q", client.requestID)
	}
}

func TestCloudWatchMetrics_StalledPublishDoesNotBlockRecord(t *testing.T) {
	client := newStallingClient()
	defer close(client.release)
	m := newTestMetrics(t, client, "Atmos")

	returned := make(chan struct{})
	go func() {
		for range 3 {
			m.RecordRequest(context.Background(), "GET", "/weather", "200", time.Millisecond)
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("RecordRequest blocked on a stalled PutMetricData call")
	}
}

func TestCloudWatchMetrics_StalledPublishTimesOut(t *testing.T) {
	logger, buf := newBufferedLogger()
	client := newStallingClient()
	m := newCloudWatchMetrics(client, "Atmos", logger, 50*time.Millisecond)

	m.RecordRequest(context.Background(), "GET", "/weather", "200", time.Millisecond)
	flush(t, m)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(buf.String(), "deadline exceeded") {
		t.Errorf("expected the stalled call to time out, got %s", buf.String())
	}
}

func TestCloudWatchMetrics_FlushHonoursContext(t *testing.T) {
	client := newStallingClient()
	defer close(client.release)
	m := newTestMetrics(t, client, "Atmos")

	m.RecordRequest(context.Background(), "GET", "/weather", "200", time.Millisecond)
	<-client.calls

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Flush = %v, want context.DeadlineExceeded", err)
	}
}

func TestCloudWatchMetrics_CloseDrainsQueue(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "Atmos", nil)

	for range 5 {
		m.RecordRequest(context.Background(), "GET", "/weather", "200", time.Millisecond)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(client.published()); got != 5 {
		t.Errorf("published %d batches, want 5", got)
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Errorf("Flush after Close = %v, want nil", err)
	}
}

// A stalled CloudWatch must not delay the API response.
func TestMetricsMiddleware_ResponseNotHeldByStalledPublish(t *testing.T) {
	client := newStallingClient()
	defer close(client.release)

	srv := newTestServer(t)
	srv.Metrics = newTestMetrics(t, client, "Atmos")
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		r.Get("/weather", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, map[string]string{"name": "London"})
		})
	})
	srv.MountRoutes()

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather", nil))
		done <- rec.Code
	}()

	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Errorf("status = %d, want 200", code)
		}
	case <-time.After(time.Second):
		t.Fatal("response was held by the metrics publisher")
	}
}
