package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKafkaBroker(t *testing.T) {
	b := NewKafkaBroker([]string{"localhost:9092"})
	defer b.Close()

	assert.Equal(t, "localhost:9092", b.writer.Addr.String())
	// topic is set per message
	assert.Empty(t, b.writer.Topic)
}
