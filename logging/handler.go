//go:build kafka
// +build kafka

package logging

import (
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/confluentinc/confluent-kafka-go.v1/kafka"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"

	"github.com/neurobagel/napiHTTP/config"
)

// kafkaWriter publishes each access log line as one message.
type kafkaWriter struct {
	producer *kafka.Producer
	topic    string
}

func newKafkaWriter(servers []string, topic string) (*kafkaWriter, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(servers, ","),
	})
	if err != nil {
		return nil, wrap.Errorf(err, "failed to connect to kafka servers %v", servers)
	}
	log.Infof("access log published to kafka topic %s", topic)
	return &kafkaWriter{producer, topic}, nil
}

func (k *kafkaWriter) Write(line []byte) (int, error) {
	// Produce is asynchronous and the caller reuses line
	value := make([]byte, len(line))
	copy(value, line)

	if err := k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Value:          value,
		Timestamp:      time.Now(),
	}, nil); err != nil {
		return 0, wrap.Error(err, "failed to publish access log line")
	}
	return len(line), nil
}

// accessLogTopic names the topic after the node: napi_<hostname>_<port>.
func accessLogTopic(hostname string, port int) string {
	return "napi_" + hostname + "_" + strconv.Itoa(port)
}

// GetLogger returns the access log writer: a kafka topic when servers are
// configured, otherwise the configured log file or stdout.
func GetLogger(port int, options config.Config) (io.Writer, error) {
	if len(options.KafkaServers) > 0 {
		writer, err := newKafkaWriter(options.KafkaServers, accessLogTopic(options.Hostname, port))
		if err != nil {
			return nil, err
		}
		return writer, nil
	}
	return openAccessLog(options.LoggerFile)
}
