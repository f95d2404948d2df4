package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avolkov/plant-controller/internal/config"
	service "github.com/avolkov/plant-controller/internal/service/plant"
	"github.com/avolkov/plant-controller/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// broker overrides the MQTT broker URL and enables the MQTT edges.
	broker string
	// metricsAddress overrides the prometheus listen address.
	metricsAddress string
	// simulate runs against the built-in plant model instead of field I/O.
	simulate bool

	// rootCmd represents the base command for running the scan loop.
	rootCmd = &cobra.Command{
		Use:   "plant-controller",
		Short: "Run the treatment plant scan-cycle controller.",
		Long: `Starts the cyclic controller for the treatment plant: intake, primary
treatment, chemical dosing, aeration and monitoring, executed in a fixed
order every scan period with a safety interlock over all outputs.

Measurements arrive over MQTT from the field acquisition layer; actuator
commands and alarm events are published back. With --simulate (or when
MQTT is disabled in the configuration) a built-in plant model closes the
loop instead, which is the normal way to exercise the controller on a
development machine. Process state is persisted to JSON so a restart
resumes from the last committed cycle.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &service.Options{
				ConfigPath:     configPath,
				Broker:         broker,
				MetricsAddress: metricsAddress,
				Simulate:       simulate,
			}

			return service.Run(ctx, options)
		},
	}
)

// Execute runs the plant-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL override (enables MQTT edges)")
	rootCmd.Flags().StringVarP(&metricsAddress, "metrics-addr", "m", "", "prometheus listen address override")
	rootCmd.Flags().BoolVarP(&simulate, "simulate", "s", false, "run against the built-in plant model")
}
