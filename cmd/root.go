package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ValentinKolb/ftsd/cmd/serve"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ftsd",
		Short: "full-text search daemon",
		Long: fmt.Sprintf(`ftsd (v%s)

A full-text search daemon serving the binary search API alongside
MySQL-protocol and HTTP surfaces, written in Go.`, serve.Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ftsd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ftsd v%s\n", serve.Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
