package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/samvad-hq/httpcap/internal/app"
	"github.com/samvad-hq/httpcap/internal/config"
	"github.com/samvad-hq/httpcap/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "httpcap failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "httpcap",
		Short:         "Calls HTTP routes described in a route table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(callCommand(), routesCommand())
	return root
}

func callCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <Route> [key=value...]",
		Short: "Invokes a route and prints the response body",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			return withCaller(func(ctx context.Context, caller *app.Caller) error {
				body, err := caller.Call(ctx, args[0], params)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if _, err := out.Write(body); err != nil {
					return err
				}
				if len(body) > 0 && body[len(body)-1] != '\n' {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
}

func routesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Lists the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCaller(func(_ context.Context, caller *app.Caller) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tMETHOD\tPATH\tPARAMS")
				for _, r := range caller.Routes() {
					names := make([]string, 0, len(r.Params))
					for _, p := range r.Params {
						names = append(names, p.Name+":"+p.In)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Method, r.Path, strings.Join(names, ","))
				}
				return w.Flush()
			})
		},
	}
}

// withCaller loads config, starts logging and runs fn with a caller bound to
// a signal-aware context.
func withCaller(fn func(context.Context, *app.Caller) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caller, err := app.NewCaller(ctx, cfg, logger.Zap{})
	if err != nil {
		logger.ErrorObj("failed to initialize caller", "error", err)
		return err
	}
	defer func() {
		if err := caller.Close(); err != nil {
			logger.ErrorObj("caller close failed", "error", err)
		}
	}()

	return fn(ctx, caller)
}

// parseParams turns key=value arguments into a map.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q must be key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}
