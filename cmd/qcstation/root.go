package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qcstation",
	Short: "Automated quality-control station controller",
	Long: `qcstation drives an inspection station: a four-phase turntable stepper,
a reject servo, indicator LEDs, a buzzer, a light strip and a status display.
It takes START, DEFECT, NORMAL and RESET commands from a host over a serial line.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	rootCmd.PersistentFlags().Int("debug", -1, "debug level 0-4 (overrides config)")
}
