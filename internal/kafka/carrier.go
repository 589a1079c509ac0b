package kafka

import segkafka "github.com/segmentio/kafka-go"

// HeaderCarrier adapts a message's []Header slice to the OpenTelemetry
// propagation.TextMapCarrier interface so trace context can ride along in
// bus messages.
type HeaderCarrier []segkafka.Header

// Get returns the value for the first header matching key, or "".
func (c HeaderCarrier) Get(key string) string {
	for i := range c {
		if c[i].Key == key {
			return string(c[i].Value)
		}
	}
	return ""
}

// Set writes key/value, replacing an existing header with the same key.
func (c *HeaderCarrier) Set(key, value string) {
	for i := range *c {
		if (*c)[i].Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, segkafka.Header{Key: key, Value: []byte(value)})
}

// Keys returns all header keys present in the carrier.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for i := range c {
		keys = append(keys, c[i].Key)
	}
	return keys
}
