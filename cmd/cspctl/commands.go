package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/headers"
)

type options struct {
	environmentsFile string
	reportURI        string
	outputJSON       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "cspctl",
		Short: "Inspect CompactConnect security headers",
		Long: `cspctl renders the Content-Security-Policy and companion security
headers the CompactConnect edge function serves for a given host.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.environmentsFile, "environments", "", "environments YAML file (default: built-in table)")
	root.PersistentFlags().StringVar(&opts.reportURI, "report-uri", "", "append a report-uri directive")
	root.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "output in JSON format")

	root.AddCommand(
		newPolicyCmd(opts),
		newHeadersCmd(opts),
		newEnvironmentsCmd(opts),
		newValidateCmd(),
	)
	return root
}

func (o *options) injector(stderr io.Writer) (*environment.Table, *headers.Injector, error) {
	table, err := environment.Load(o.environmentsFile)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	var copts []csp.Option
	if o.reportURI != "" {
		copts = append(copts, csp.WithReportURI(o.reportURI))
	}
	return table, headers.NewInjector(table, csp.NewBuilder(logger, copts...), nil), nil
}

func newPolicyCmd(opts *options) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the Content-Security-Policy for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inj, err := opts.injector(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			result := inj.For(host)
			out := cmd.OutOrStdout()
			if opts.outputJSON {
				return writeJSON(out, result)
			}
			if result.Resolution.Fallback {
				fmt.Fprintf(cmd.ErrOrStderr(), "host %q not configured, using %s\n", host, result.Resolution.Environment.Name)
			}
			// One directive per line reads better in a terminal.
			fmt.Fprintln(out, strings.ReplaceAll(result.Policy.Value, "; ", ";\n"))
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "web front-end host to resolve")
	return cmd
}

func newHeadersCmd(opts *options) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "headers",
		Short: "Print every security header for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inj, err := opts.injector(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			result := inj.For(host)
			out := cmd.OutOrStdout()
			if opts.outputJSON {
				return writeJSON(out, result.Headers)
			}
			for _, h := range result.Headers {
				fmt.Fprintf(out, "%s: %s\n", h.Key, h.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "web front-end host to resolve")
	return cmd
}

func newEnvironmentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "environments",
		Short: "List configured environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _, err := opts.injector(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.outputJSON {
				return writeJSON(out, table.Environments())
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tWEB DOMAIN\tDATA API\tDEFAULT")
			for _, env := range table.Environments() {
				def := ""
				if env.Name == table.Default().Name {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", env.Name, env.WebDomain, environment.Qualify(env.DataAPI), def)
			}
			return tw.Flush()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate an environments file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := environment.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d environments, default %s\n", args[0], len(table.Environments()), table.Default().Name)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
