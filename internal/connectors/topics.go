package connectors

const (
	TopicConnStatus = "conn.status"
	TopicFault      = "fault"
	TopicRawNoise   = "raw.noise"
	TopicSinkStatus = "sink.status"
)
