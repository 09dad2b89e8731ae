package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"
	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/accelconfig"
	"github.com/rogpeppe/accellog/cloudlink"
	"github.com/rogpeppe/accellog/ntpclock"
	"github.com/rogpeppe/accellog/pipeline"
	"github.com/rogpeppe/accellog/recordfile"
	"github.com/rogpeppe/accellog/vizserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "log accelerometer data and serve the chart",
	Long: `serve connects to the broker, appends every complete accelerometer
reading to the log file and, after each batch of readings, rewrites the
snapshot file and updates the chart served on the HTTP address.
`,
	Example: `  accellog serve --config accellog.yaml --http-addr :8050`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func serveCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", defaultConfigFile, "configuration file")
	cmd.Flags().String("http-addr", "", "address for the chart server (overrides the configuration)")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := accelconfig.Load(path)
	if err != nil {
		return errgo.Mask(err)
	}
	if addr, _ := cmd.Flags().GetString("http-addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if err := loggo.ConfigureLoggers(cfg.LogLevel); err != nil {
		return errgo.Notef(err, "invalid log level")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve runs the logger until the context is cancelled
// or the broker connection fails.
func serve(ctx context.Context, cfg *accelconfig.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return errgo.Mask(err)
	}
	axes, err := cfg.Axes()
	if err != nil {
		return errgo.Mask(err)
	}
	var clock pipeline.Clock
	if cfg.NTPHost != "" {
		ntpClock, err := ntpclock.New(ntpclock.Params{
			Host:     cfg.NTPHost,
			Location: loc,
		})
		if err != nil {
			return errgo.Mask(err)
		}
		defer ntpClock.Close()
		clock = ntpClock
	}
	logw, err := recordfile.OpenLog(cfg.LogFile, loc)
	if err != nil {
		return errgo.Mask(err)
	}
	defer logw.Close()
	snapshot := recordfile.Snapshot{
		Path:     cfg.SnapshotFile,
		Location: loc,
	}
	if err := snapshot.Reset(); err != nil {
		return errgo.Mask(err)
	}

	viz := vizserver.New(vizserver.Params{
		BatchSize: cfg.BatchSize,
		Location:  loc,
	})
	defer viz.Close()
	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return errgo.Notef(err, "cannot listen")
	}
	httpSrv := &http.Server{
		Handler: viz,
	}
	go func() {
		if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
			logger.Errorf("chart server failed: %v", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()
	logger.Infof("serving chart on http://%s/", lis.Addr())

	conn, err := cloudlink.Dial(ctx, cloudlink.Params{
		URL:      cfg.BrokerURL,
		DeviceID: cfg.DeviceID,
		Secret:   cfg.Secret,
		Names:    cfg.VariableNames(),
	})
	if err != nil {
		return errgo.Mask(err, errgo.Is(cloudlink.ErrUnauthorized))
	}
	defer conn.Close()

	updates := make(chan cloudlink.Update, 100)
	w, err := pipeline.New(pipeline.Params{
		Updates:    updates,
		Axes:       axes,
		Log:        logw,
		Exporter:   snapshot,
		Visualizer: viz,
		BatchSize:  cfg.BatchSize,
		Clock:      clock,
	})
	if err != nil {
		return errgo.Mask(err)
	}
	defer w.Close()
	if err := conn.Run(ctx, updates); err != nil {
		return errgo.Notef(err, "lost connection to broker")
	}
	w.Close()
	logger.Infof("shutting down; %d records appended to %s", logw.Count(), logw.Path())
	return nil
}
