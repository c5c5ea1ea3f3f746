// Command httpgen writes forwarding dispatchers for interfaces so they can be
// used with client.Make. It is meant to run from go:generate:
//
//	//go:generate go run github.com/samvad-hq/httpcap/cmd/httpgen --type UserAPI
package main

import (
	"fmt"
	"os"

	"github.com/samvad-hq/httpcap/internal/gen"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "httpgen failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts gen.Options
	cmd := &cobra.Command{
		Use:           "httpgen --type Iface[,Iface...]",
		Short:         "Generates dispatchers for HTTP-backed interfaces",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := gen.Generate(opts)
			if err != nil {
				return err
			}
			if err := gen.WriteFiles(files); err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f.Path)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Dir, "dir", "d", ".", "package directory to scan")
	flags.StringSliceVarP(&opts.Types, "type", "t", nil, "interfaces to generate for, comma separated")
	flags.StringVarP(&opts.Output, "out", "o", "", "write all dispatchers into this file")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
