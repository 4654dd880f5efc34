package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/netq/cmd/perf"
	"github.com/ValentinKolb/netq/cmd/send"
	"github.com/ValentinKolb/netq/cmd/serve"
	"github.com/ValentinKolb/netq/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "netq",
		Short: "asynchronous TCP endpoints",
		Long: fmt.Sprintf(`netq (v%s)

A utility library for asynchronous TCP connections written in Go.
Each endpoint owns a background worker that pumps bytes between the
socket and in-memory queues, so callers never block on I/O.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netq",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netq v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(send.SendCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
