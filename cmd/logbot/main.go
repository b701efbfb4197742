package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	serverURL  string
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "logbot",
		Short: "Line-following robot control daemon",
		Long: `logbot drives a line-following robot: it calibrates the sensors, finds
the line edge, follows it and runs a scripted demo. One action runs at a
time; requests arrive over HTTP or a Redis list.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9999", "daemon address for client commands")

	root.AddCommand(
		serveCmd(),
		sendCmd(),
		healthCmd(),
		statusCmd(),
	)
	return root
}
