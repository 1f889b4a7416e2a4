// rxcore CLI - exercises and inspects the interpreter runtime core
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/rxcore/config"

	_ "github.com/tliron/commonlog/simple"
)

var (
	verbose   int
	configDir string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rxcore",
		Short:         "Exercise the segment allocator, compound tables and activation stacks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().CountVarP(&verbose, "verbose", "v", "Increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&configDir, "config", ".", "Directory to search upward for "+config.FileName)

	root.AddCommand(newStressCommand())
	root.AddCommand(newStemCommand())
	return root
}

// loadConfig finds the configuration and sets up logging from it. The
// -v flag overrides the configured verbosity.
func loadConfig() (*config.Config, error) {
	c, err := config.FindAndLoad(configDir)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = config.Default()
	}
	level := c.Log.Verbosity
	if verbose > 0 {
		level = verbose
	}
	commonlog.Configure(level, c.Log.File)
	return c, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
