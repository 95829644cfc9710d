package ports

// Metric names shared by the pipeline and observability adapters.
const (
	MetricReceived       = "robot_messages_received_total"
	MetricPublished      = "robot_messages_published_total"
	MetricBlocked        = "robot_messages_blocked_total"
	MetricDecodeErrors   = "robot_decode_errors_total"
	MetricQueueDropped   = "robot_queue_dropped_total"
	MetricSinkErrors     = "robot_sink_errors_total"
	MetricQueueLength    = "robot_queue_length"
	MetricBlockRatio     = "robot_block_ratio"
	MetricMessageAge     = "robot_message_age_seconds"
	MetricProcessLatency = "robot_process_latency_seconds"
)
