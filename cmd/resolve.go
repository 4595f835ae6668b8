package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/macro-cli/internal/config"
)

var (
	resolveOutput string
	resolveTrace  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <meal description>",
	Short: "Estimate macros for one meal description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeResolve); err != nil {
			return err
		}
		if err := checkOutputFormat(resolveOutput); err != nil {
			return err
		}

		eng := initEngine(cfg.Providers)
		query := strings.Join(args, " ")

		if resolveTrace {
			res, err := eng.Resolver.ResolveDetailed(cmd.Context(), query)
			if res != nil {
				if werr := writeOutput(os.Stdout, resolveOutput, res); werr != nil {
					return werr
				}
			}
			return err
		}

		result, err := eng.Resolver.Resolve(cmd.Context(), query)
		if err != nil {
			return err
		}
		return writeOutput(os.Stdout, resolveOutput, result)
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "json", "output format (json or yaml)")
	resolveCmd.Flags().BoolVar(&resolveTrace, "trace", false, "include the routing plan and per-provider attempts")
	rootCmd.AddCommand(resolveCmd)
}

func checkOutputFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	default:
		return eris.Errorf("unsupported output format %q (json or yaml)", format)
	}
}

// writeOutput encodes v as indented JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	}
}
