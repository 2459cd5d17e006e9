//go:build !kafka
// +build !kafka

package logging

import (
	"io"

	"hermannm.dev/devlog/log"

	"github.com/neurobagel/napiHTTP/config"
)

// GetLogger returns the access log writer: the configured log file or
// stdout.  Kafka servers are ignored unless built with the kafka tag.
func GetLogger(port int, options config.Config) (io.Writer, error) {
	if len(options.KafkaServers) > 0 {
		log.Warn("kafka servers configured but kafka logging was not built in; rebuild with -tags kafka")
	}
	return openAccessLog(options.LoggerFile)
}
