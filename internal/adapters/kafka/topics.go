package kafka

// Topic definitions for Kafka event streaming. The activity topic name is
// configurable; this is its default.
const (
	TopicActivity = "tradelens.activity"
)
