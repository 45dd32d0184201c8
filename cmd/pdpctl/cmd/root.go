// Package cmd provides the CLI commands for pdpctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-abac/pdp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pdpctl",
	Short: "pdpctl - XACML 3.0 policy decision point CLI",
	Long: `pdpctl loads an XACML 3.0 policy/policy-set and evaluates access
requests against it.

Configuration is loaded from pdp.yaml in the current directory by default;
environment variables override it with the PDP_ prefix
(e.g. PDP_DECISION_CACHE_BACKEND=memory).

Commands:
  evaluate    Evaluate one request against a loaded policy
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInternalError)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pdp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// Exit codes: 0 = evaluation completed and its Response printed (whatever
// the decisions in it), 1 = configuration error, 2 = invalid request,
// 3 = internal error.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitInvalidRequest = 2
	exitInternalError  = 3
)
