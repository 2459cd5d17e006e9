package logging

import (
	"io"
	"os"

	"hermannm.dev/wrap"
)

// openAccessLog returns stdout, or path opened for appending when set.
func openAccessLog(path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to open access log %s", path)
	}
	return file, nil
}
