package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/qcstation/internal/config"
	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/gpio"
	"github.com/cjeanneret/qcstation/internal/hw/serial"
	"github.com/cjeanneret/qcstation/internal/station"
	"github.com/cjeanneret/qcstation/internal/web"
)

// shutdownTimeout bounds the final reset after the loop stops.
const shutdownTimeout = 10 * time.Second

var runFlags struct {
	stdin bool
	web   webPortFlag
	port  string
	baud  int
	mock  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the station control loop",
	Long: `Run opens the host link (the configured serial port, or stdin/stdout with
--stdin), puts every output in its idle state and serves commands until the
host goes away or the process is interrupted.

With --web the station state, a command form and a live event stream are
also served over HTTP, together with Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyOverrides(cfg, overridesFromFlags(cmd))
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid override")
		}

		// stdout carries the host protocol in stdin mode.
		if runFlags.stdin {
			debug.SetOutput(os.Stderr)
		}
		debug.Init(cfg.Defaults.DebugLevel)
		debug.Section("Initialization")
		debug.Value("Config path", cfgPath)
		debug.Value("Debug level", cfg.Defaults.DebugLevel)
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, runFlags.stdin, runFlags.web.port())
	},
}

func init() {
	runFlags.web.defaultPort = 8080
	runCmd.Flags().BoolVar(&runFlags.stdin, "stdin", false, "read commands from stdin and reply on stdout instead of the serial port")
	runCmd.Flags().Var(&runFlags.web, "web", "serve the web UI on port; --web for 8080, --web=8980 for a custom port")
	runCmd.Flags().Lookup("web").NoOptDefVal = "8080"
	runCmd.Flags().StringVar(&runFlags.port, "port", "", "serial port (overrides config)")
	runCmd.Flags().IntVar(&runFlags.baud, "baud", 0, "baud rate (overrides config)")
	runCmd.Flags().BoolVar(&runFlags.mock, "mock", false, "use the mock GPIO driver (overrides config)")
	rootCmd.AddCommand(runCmd)
}

// overrides holds the command-line values that replace config fields.
// Zero values and nil pointers leave the config untouched.
type overrides struct {
	Port  string
	Baud  int
	Mock  *bool
	Debug int // -1 = keep
}

func overridesFromFlags(cmd *cobra.Command) overrides {
	o := overrides{Port: runFlags.port, Baud: runFlags.baud, Debug: -1}
	if cmd.Flags().Changed("mock") {
		m := runFlags.mock
		o.Mock = &m
	}
	if d, err := cmd.Flags().GetInt("debug"); err == nil {
		o.Debug = d
	}
	return o
}

func applyOverrides(cfg *config.Config, o overrides) {
	if o.Port != "" {
		cfg.Serial.Port = o.Port
	}
	if o.Baud > 0 {
		cfg.Serial.BaudRate = o.Baud
	}
	if o.Mock != nil {
		cfg.Defaults.MockGPIO = *o.Mock
	}
	if o.Debug >= 0 {
		cfg.Defaults.DebugLevel = o.Debug
	}
}

// loadConfig reads the file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfigPath(path); err != nil {
		return nil, errors.Wrap(err, "invalid config path")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

// hostLink is the line source and reply sink the station talks to.
type hostLink interface {
	station.LineSource
	io.Writer
}

type stdioLink struct {
	*station.ReaderSource
	io.Writer
}

func openHost(cfg *config.Config, stdin bool) (hostLink, func() error, error) {
	if stdin {
		debug.Info("Host link: stdin/stdout")
		return stdioLink{station.NewReaderSource(os.Stdin, cfg.PollInterval()), os.Stdout}, func() error { return nil }, nil
	}
	l, err := serial.Open(serial.Config{
		Name:     cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		Poll:     cfg.PollInterval(),
	})
	if err != nil {
		return nil, nil, err
	}
	return l, l.Close, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// run wires the station and serves the host until ctx is done or the host
// link closes. A webPort of 0 disables the web UI.
func run(ctx context.Context, cfg *config.Config, stdin bool, webPort int) error {
	debug.Step(1, "Initializing GPIO driver")
	drv, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return errors.Wrap(err, "init GPIO")
	}
	defer func() {
		if err := drv.Close(); err != nil {
			debug.Error(errors.Wrap(err, "close GPIO driver"))
		}
	}()

	debug.Step(2, "Opening host link")
	link, closeLink, err := openHost(cfg, stdin)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLink(); err != nil {
			debug.Error(errors.Wrap(err, "close host link"))
		}
	}()

	host := station.NewHostWriter(link)
	reg := newRegistry()
	a, err := build(cfg, drv, host, reg, nil)
	if err != nil {
		return err
	}
	if err := a.greet(); err != nil {
		return err
	}
	debug.Summary("Station ready")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The host going away ends the whole run.
		defer cancel()
		return a.station.Run(gctx, link)
	})

	if webPort > 0 {
		b := web.NewStatusBroadcaster()
		host.Subscribe(b.HostLine)
		a.station.Subscribe(b.StationEvent)
		logOut := io.Writer(os.Stdout)
		if stdin {
			logOut = os.Stderr
		}
		debug.SetOutput(io.MultiWriter(logOut, web.BroadcastWriter(b)))

		srv, err := web.NewServer(gctx, fmt.Sprintf(":%d", webPort), b, a.station, reg)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	err = g.Wait()

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	waitIdle(sctx, a.station)
	a.shutdown(sctx)
	return err
}

// waitIdle gives a sequence started over HTTP the chance to unwind after
// cancellation before the outputs are reset.
func waitIdle(ctx context.Context, st *station.Station) {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for st.Busy() {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// webPortFlag implements pflag.Value for --web: 0 = disabled,
// --web or --web= → default port, --web=8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) Type() string { return "port" }

func (w *webPortFlag) port() int { return w.val }
