// Neurobagel node API
//
// REST interface for cohort queries over a Neurobagel graph.  When token
// verification is enabled, authorize Swagger by typing "Bearer " and pasting
// an ID token issued for the configured client.
//
//     Version: 1.1.0
//     Security:
//     - Bearer
//
//     SecurityDefinitions:
//     Bearer:
//         type: apiKey
//         name: Authorization
//         in: header
//
// swagger:meta
//go:generate swagger generate spec -o ./swagger.yaml
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"
	"hermannm.dev/devlog/log"

	"github.com/neurobagel/napiHTTP/api"
	_ "github.com/neurobagel/napiHTTP/api/attributes"
	_ "github.com/neurobagel/napiHTTP/api/dbmeta"
	_ "github.com/neurobagel/napiHTTP/api/query"
	"github.com/neurobagel/napiHTTP/config"
	"github.com/neurobagel/napiHTTP/logging"
	"github.com/neurobagel/napiHTTP/secure"
)

const accessLogFormat = "{\"id\": \"${id}\", \"uri\": \"${uri}\", \"status\": ${status}, \"bytes_in\": ${bytes_in}, \"bytes_out\": ${bytes_out}, \"duration\": ${latency}, \"time\": ${time_unix}, \"user\": \"${custom:email}\", \"category\": \"${category}\", \"debug\": \"${custom:debug}\"}\n"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var port int
	var configFile string

	cmd := &cobra.Command{
		Use:          "napihttp [CONFIG]",
		Short:        "Cohort query API for a Neurobagel graph",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				configFile = args[0]
			}
			return serve(port, configFile)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8000, "port to start server")
	cmd.Flags().StringVar(&configFile, "config", "", "JSON or YAML configuration file (NB_* environment variables take precedence)")
	return cmd
}

func serve(port int, configFile string) error {
	options, err := config.LoadConfig(configFile)
	if err != nil {
		logging.SetupProcessLog(true, os.Stderr)
		log.ErrorCause(err, "failed to load configuration")
		return err
	}
	logging.SetupProcessLog(options.DevLogs, os.Stderr)

	// create datastore based on configuration
	store, err := config.CreateStore(options)
	if err != nil {
		log.ErrorCause(err, "failed to create graph store", slog.String("engine", options.Engine))
		return err
	}

	// create echo web framework
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(glog.INFO)

	accessLog, err := logging.GetLogger(port, options)
	if err != nil {
		log.ErrorCause(err, "failed to open access log")
		return err
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewV4().String() },
	}))
	e.Use(logging.LoggerWithConfig(logging.LoggerConfig{
		Format: accessLogFormat,
		Output: accessLog,
	}))

	origins := options.Origins()
	if len(origins) == 0 {
		log.Warn("NB_API_ALLOWED_ORIGINS is empty; browsers will refuse cross-origin requests")
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	if options.Metrics {
		prometheus.NewPrometheus("napi", nil).Use(e)
	}

	grp := e.Group(options.BasePath)
	if options.EnableAuth {
		verifier, err := secure.NewTokenVerifier(secure.AuthConfig{
			ClientID:      options.ClientID,
			Issuer:        options.AuthIssuer,
			KeyFile:       options.AuthKeyFile,
			Secret:        options.AuthSecret,
			BlocklistFile: options.AuthBlocklist,
		})
		if err != nil {
			log.ErrorCause(err, "failed to set up token verification")
			return err
		}
		grp.Use(verifier.AuthMiddleware())
		go reloadOnHangup(verifier)
	}

	if err = api.SetupRoutes(e, grp, store, api.Options{
		MinCellSize: options.MinCellSize,
		ReturnAgg:   options.ReturnAgg,
	}); err != nil {
		log.ErrorCause(err, "failed to set up routes")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("listening on port %d", port)
		serverErr <- secure.StartServer(e, secure.ServerConfig{
			Port:     port,
			SSLCert:  options.CertPEM,
			SSLKey:   options.KeyPEM,
			AutoTLS:  options.AutoTLS,
			Hostname: options.Hostname,
		})
	}()

	select {
	case err = <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.ErrorCause(err, "server stopped")
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

// reloadOnHangup rereads the revoked token file on every SIGHUP.
func reloadOnHangup(verifier *secure.TokenVerifier) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		if err := verifier.ReloadBlocklist(); err != nil {
			log.ErrorCause(err, "failed to reload revoked tokens")
		}
	}
}
