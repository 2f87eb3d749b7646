package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler adapts an http.Handler to API Gateway REST proxy events so
// the same chi router serves both local HTTP and Lambda invocations.
type LambdaHandler struct {
	handler  http.Handler
	flushers []MetricsFlusher
}

// NewLambdaHandler wraps h for use with lambda.Start. The flushers are
// drained after every invocation, before the response is returned.
func NewLambdaHandler(h http.Handler, flushers ...MetricsFlusher) *LambdaHandler {
	return &LambdaHandler{handler: h, flushers: flushers}
}

// Handle converts the proxy event into an *http.Request, serves it and
// converts the captured response back. Compressed or non-UTF-8 bodies are
// base64 encoded as API Gateway requires.
func (l *LambdaHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := newRequestFromEvent(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("building request from proxy event: %w", err)
	}

	rw := newBufferedResponseWriter()
	l.handler.ServeHTTP(rw, req)

	for _, f := range l.flushers {
		if err := f.Flush(ctx); err != nil {
			slog.WarnContext(ctx, "metrics flush incomplete", "error", err)
		}
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        rw.status,
		MultiValueHeaders: map[string][]string(rw.header),
	}

	body := rw.body.Bytes()
	if rw.header.Get("Content-Encoding") != "" || !utf8.Valid(body) {
		resp.Body = base64.StdEncoding.EncodeToString(body)
		resp.IsBase64Encoded = true
	} else {
		resp.Body = string(body)
	}
	return resp, nil
}

func newRequestFromEvent(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	u := url.URL{Path: event.Path}

	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	body := []byte(event.Body)
	if event.IsBase64Encoded && event.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = decoded
	}

	method := event.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	if req.Header.Get("X-Request-Id") == "" && event.RequestContext.RequestID != "" {
		req.Header.Set("X-Request-Id", event.RequestContext.RequestID)
	}
	req.RemoteAddr = event.RequestContext.Identity.SourceIP
	req.Host = req.Header.Get("Host")
	req.RequestURI = u.RequestURI()
	return req, nil
}

// bufferedResponseWriter collects a response in memory.
type bufferedResponseWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: http.Header{}, status: http.StatusOK}
}

func (w *bufferedResponseWriter) Header() http.Header { return w.header }

func (w *bufferedResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.header.Get("Content-Type") == "" {
		w.header.Set("Content-Type", http.DetectContentType(b))
	}
	return w.body.Write(b)
}

