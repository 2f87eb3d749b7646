package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// Default metric namespace, overridable via METRIC_NAMESPACE.
	MetricNamespace = "Atmos"
)
