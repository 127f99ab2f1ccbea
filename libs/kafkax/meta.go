package kafkax

import (
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderVersion   = "event_version"
)

// EventMeta is the metadata carried on every booking event.
type EventMeta struct {
	EventID   string
	EventType string
	Version   string
}

// ExtractEventMeta falls back to the message key and topic for producers that
// do not set the headers.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
		Version:   HeaderValue(msg.Headers, HeaderVersion),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

// Headers renders meta as Kafka headers, skipping empty values.
func (m EventMeta) Headers() []kafka.Header {
	out := make([]kafka.Header, 0, 3)
	for _, kv := range [][2]string{{HeaderEventID, m.EventID}, {HeaderEventType, m.EventType}, {HeaderVersion, m.Version}} {
		if kv[1] != "" {
			out = append(out, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return out
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
