package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/valyala/fasttemplate"
	"hermannm.dev/devlog"
)

// LoggerConfig defines the config for the access log middleware.
//
// Format tags:
//
//	${time_unix}, ${time_rfc3339}, ${id}, ${remote_ip}, ${host}, ${method},
//	${uri}, ${path}, ${category}, ${status}, ${latency}, ${latency_human},
//	${bytes_in}, ${bytes_out}, ${custom:<key>}
//
// ${category} is the first path segment after an optional version prefix.
// ${custom:<key>} writes the value stored under key in the echo context.
// Values that may hold arbitrary text (uri, path, custom) are JSON escaped
// so the format can be a JSON object.
type LoggerConfig struct {
	Skipper middleware.Skipper
	Format  string
	Output  io.Writer
}

// LoggerWithConfig returns an access log middleware.
func LoggerWithConfig(config LoggerConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	template := fasttemplate.New(config.Format, "${", "}")
	pool := &sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 256))
		},
	}
	var mu sync.Mutex

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if config.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			buf := pool.Get().(*bytes.Buffer)
			buf.Reset()
			defer pool.Put(buf)

			if _, err = template.ExecuteFunc(buf, func(w io.Writer, tag string) (int, error) {
				switch tag {
				case "time_unix":
					return buf.WriteString(strconv.FormatInt(stop.Unix(), 10))
				case "time_rfc3339":
					return buf.WriteString(stop.Format(time.RFC3339))
				case "id":
					id := req.Header.Get(echo.HeaderXRequestID)
					if id == "" {
						id = res.Header().Get(echo.HeaderXRequestID)
					}
					return writeEscaped(buf, id)
				case "remote_ip":
					return buf.WriteString(c.RealIP())
				case "host":
					return writeEscaped(buf, req.Host)
				case "method":
					return buf.WriteString(req.Method)
				case "uri":
					return writeEscaped(buf, req.RequestURI)
				case "path":
					return writeEscaped(buf, req.URL.Path)
				case "category":
					return writeEscaped(buf, category(req.URL.Path))
				case "status":
					return buf.WriteString(strconv.Itoa(res.Status))
				case "latency":
					return buf.WriteString(strconv.FormatInt(int64(stop.Sub(start)), 10))
				case "latency_human":
					return buf.WriteString(stop.Sub(start).String())
				case "bytes_in":
					cl := req.Header.Get(echo.HeaderContentLength)
					if cl == "" {
						cl = "0"
					}
					return buf.WriteString(cl)
				case "bytes_out":
					return buf.WriteString(strconv.FormatInt(res.Size, 10))
				default:
					if key, ok := strings.CutPrefix(tag, "custom:"); ok {
						if v, ok := c.Get(key).(string); ok {
							return writeEscaped(buf, v)
						}
					}
				}
				return 0, nil
			}); err != nil {
				return
			}

			mu.Lock()
			_, err = config.Output.Write(buf.Bytes())
			mu.Unlock()
			return
		}
	}
}

// writeEscaped writes s as the body of a JSON string.
func writeEscaped(buf *bytes.Buffer, s string) (int, error) {
	quoted, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}
	return buf.Write(quoted[1 : len(quoted)-1])
}

func category(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 1 && len(segments[0]) > 1 && segments[0][0] == 'v' {
		if _, err := strconv.Atoi(strings.Split(segments[0][1:], ".")[0]); err == nil {
			segments = segments[1:]
		}
	}
	return segments[0]
}

// SetupProcessLog installs the default slog logger: a devlog handler for
// development or JSON lines for production.
func SetupProcessLog(dev bool, output io.Writer) {
	var handler slog.Handler
	if dev {
		handler = devlog.NewHandler(output, &devlog.Options{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}
