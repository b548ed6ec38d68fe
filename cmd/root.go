package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dPrim/cmd/bench"
	"github.com/ValentinKolb/dPrim/cmd/selector"
	"github.com/ValentinKolb/dPrim/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dprim",
		Short: "consistency-driven distributed primitives",
		Long: fmt.Sprintf(`dPrim (v%s)

Distributed primitives whose replication protocol is chosen from the
consistency, persistence and replication they require. Updates run as
optimistic compare-and-set loops on RAFT (Dragonboat) or on a
multi-primary replica group.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dPrim",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dPrim v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(selector.SelectCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
