// Command r2cnt is a read-only counter dumper: it attaches to a running
// r2 instance's shared-memory counter segment and prints every counter's
// values, optionally narrowed to names matching a glob pattern.
package main

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/gopakumarce/r2/internal/counters"
)

var cmd struct {
	Shm    string
	Filter string
}

var rootCmd = &cobra.Command{
	Use:   "r2cnt",
	Short: "Dump r2 forwarding-plane counters",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(cmd.Shm, cmd.Filter)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.Shm, "shm", "s", "r2cnt", "Shared-memory segment name the counters live under")
	rootCmd.Flags().StringVarP(&cmd.Filter, "filter", "f", "*", "Glob pattern counter names must match to be printed")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(shmName, filter string) error {
	g, err := glob.Compile(filter)
	if err != nil {
		return fmt.Errorf("bad filter %q: %w", filter, err)
	}

	ro, err := counters.OpenReadOnly(shmName)
	if err != nil {
		return fmt.Errorf("no r2 shared memory found under %q: %w", shmName, err)
	}
	defer ro.Close()

	names := ro.Names()
	for _, name := range names {
		if !g.Match(name) {
			continue
		}
		cntr, ok := ro.Lookup(name)
		if !ok {
			continue
		}
		fmt.Printf("%s:", name)
		for i := 0; i < cntr.Len(); i++ {
			fmt.Printf(" %d", cntr.Read(i))
		}
		fmt.Println()
	}
	return nil
}
