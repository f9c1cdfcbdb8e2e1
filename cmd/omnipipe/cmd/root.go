package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wayneeseguin/omnipipe/pkg/omni"
)

var (
	cfgFile  string
	sinkURIs []string
	format   string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "omnipipe",
	Short: "Structured logging pipeline driver",
	Long: `omnipipe drives an omni logging pipeline from the command line.

It can push synthetic load through a configured set of sinks and report
the resulting metrics and health, or run as a long-lived process exposing
Prometheus metrics and health probes.

Sinks are given as URIs:
  stdout, stderr                 console
  /var/log/app.log               file (file:///path?compress=gzip)
  syslog://host:514?tag=app      syslog
  nats://host:4222/logs.app      NATS subject
  memory://?limit=100            in-memory`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringArrayVar(&sinkURIs, "sink", nil, "sink as uri or name=uri, repeatable")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "formatter for --sink sinks (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report pipeline errors on stderr")
}

// loadConfig builds the provider configuration from --config and --sink.
func loadConfig() (*omni.Config, error) {
	cfg := omni.DefaultConfig()
	if cfgFile != "" {
		loaded, err := omni.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for _, s := range sinkURIs {
		name, uri := "", s
		if i := strings.Index(s, "="); i > 0 && !strings.Contains(s[:i], ":") {
			name, uri = s[:i], s[i+1:]
		}
		cfg.Sinks = append(cfg.Sinks, omni.SinkConfig{Name: name, URI: uri, Format: format})
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []omni.SinkConfig{{Name: "stdout", URI: "stdout", Format: format}}
	}

	if verbose {
		cfg.ErrorHandler = omni.StderrErrorHandler
	} else {
		cfg.ErrorHandler = omni.SilentErrorHandler
	}
	return cfg, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
