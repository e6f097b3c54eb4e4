// Command watchtreed is the watch-tree manager daemon: it accepts watch,
// unwatch, pause, unpause, get_events, get_queue_size, and get_roots
// requests over a control socket, maintains a recursive inotify watch tree
// for every registered root, and runs periodic housekeeping to repair
// watches and reclaim stale index entries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "watchtreed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "watchtreed",
		Short:         "Recursive filesystem watch-tree manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/watchtreed/config.yaml", "path to the watchtreed YAML configuration file")

	root.AddCommand(newStartCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}
