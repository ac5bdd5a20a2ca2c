// Command rush runs the synthetic network shaping engine between two
// Linux interfaces, reshaping traffic according to a JSON QoS spec that
// can be hot-reloaded by SIGHUP or a write to the spec file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rush",
	Short: "A userspace packet-shaping engine for synthetic network conditions",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
