package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dhash",
		Short:         "Load delimited records into a double-hashing table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(loadCommand())
	return cmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dhash: %v\n", err)
		os.Exit(1)
	}
}
