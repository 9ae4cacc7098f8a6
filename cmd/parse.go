package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"weboptimizer-backend/internal/parser"
)

func newParseCmd() *cobra.Command {
	var (
		format     string
		parserName string
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Split a generation reply into code, app, style and explanation",
		Long:  "Reads a raw reply from a file, or stdin when no file is given, and prints its fragments.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parse, err := parser.ByName(parserName)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read reply: %w", err)
			}

			return printReply(cmd.OutOrStdout(), parse(string(text)), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml")
	cmd.Flags().StringVar(&parserName, "parser", "structured", "parser: structured, legacy")
	return cmd
}

func printReply(w io.Writer, reply parser.Reply, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(reply)
	case "text":
		printFragment(w, "code", reply.Code)
		printFragment(w, "app", reply.App)
		printFragment(w, "style", reply.Style)
		printFragment(w, "explanation", reply.Explanation)
		if missing := reply.Missing(); len(missing) > 0 {
			fmt.Fprintln(w, color.YellowString("missing: %s", strings.Join(missing, ", ")))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printFragment(w io.Writer, name string, f parser.Fragment) {
	status := color.GreenString("✓")
	if !f.Found {
		status = color.RedString("✗")
	}
	fmt.Fprintf(w, "%s %s\n", status, color.CyanString("--- %s ---", name))
	if f.Text != "" {
		fmt.Fprintln(w, f.Text)
	}
}
