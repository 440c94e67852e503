package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/qcstation/internal/debug"
	"github.com/cjeanneret/qcstation/internal/hw/serial"
	"github.com/cjeanneret/qcstation/internal/station"
)

var sendFlags struct {
	port    string
	baud    int
	listen  time.Duration
	settle  time.Duration
	verbose bool
}

var sendCmd = &cobra.Command{
	Use:   "send COMMAND",
	Short: "Send one command to a station and print its replies",
	Long: `Send plays the host side of the link: it opens the serial port, waits for
the board to settle, writes COMMAND (START, DEFECT, NORMAL or RESET) and prints
every reply received until --listen expires.

"Waiting..." poll lines are hidden unless --verbose is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.TrimSpace(args[0])
		if station.Interpret(command).Kind == station.Unknown {
			// The station answers unknown input too; warn but send anyway.
			fmt.Fprintf(os.Stderr, "warning: %q is not a station command\n", command)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyOverrides(cfg, overrides{Port: sendFlags.port, Baud: sendFlags.baud, Debug: -1})
		if d, _ := cmd.Flags().GetInt("debug"); d >= 0 {
			cfg.Defaults.DebugLevel = d
		} else {
			cfg.Defaults.DebugLevel = debug.LevelOff
		}
		debug.SetOutput(os.Stderr)
		debug.Init(cfg.Defaults.DebugLevel)

		l, err := serial.Open(serial.Config{
			Name:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			Poll:     cfg.PollInterval(),
		})
		if err != nil {
			return err
		}
		defer l.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return serial.Send(ctx, l, command, serial.SendOptions{
			Settle: sendFlags.settle,
			Listen: sendFlags.listen,
		}, replyPrinter(cmd.OutOrStdout(), sendFlags.verbose))
	},
}

// replyPrinter prints station replies, dropping idle polls unless verbose.
func replyPrinter(w io.Writer, verbose bool) func(string) {
	return func(line string) {
		if !verbose && line == station.MsgWaiting {
			return
		}
		fmt.Fprintln(w, line)
	}
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports present on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.List()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			return errors.New("no serial ports found")
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendFlags.port, "port", "", "serial port (overrides config)")
	sendCmd.Flags().IntVar(&sendFlags.baud, "baud", 0, "baud rate (overrides config)")
	sendCmd.Flags().DurationVar(&sendFlags.listen, "listen", 5*time.Second, "how long to collect replies")
	sendCmd.Flags().DurationVar(&sendFlags.settle, "settle", 2*time.Second, "wait after opening the port; the board resets on open")
	sendCmd.Flags().BoolVarP(&sendFlags.verbose, "verbose", "v", false, "also print Waiting... polls")
	rootCmd.AddCommand(sendCmd, portsCmd)
}
