package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

type rootOptions struct {
	jsonOutput bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "analyzer",
		Short:         "Validate and classify free-text requirement messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON lines")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(newAnalyzeCommand(opts))
	cmd.AddCommand(newDemoCommand(opts))
	return cmd
}

func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	var jsonInput bool
	cmd := &cobra.Command{
		Use:   "analyze [message...]",
		Short: "Analyze the message given as arguments, or one message per stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPipeline(cmd, opts)
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				if err := printResult(out, opts, p.Process(cmd.Context(), strings.Join(args, " "))); err != nil {
					return err
				}
				return printReport(out, opts, p.Snapshot())
			}

			// No line length limit: a message may be arbitrarily long.
			reader := bufio.NewReader(cmd.InOrStdin())
			for {
				line, readErr := reader.ReadString('\n')
				if readErr != nil && readErr != io.EOF {
					return fmt.Errorf("read stdin: %w", readErr)
				}
				if line != "" || readErr == nil {
					line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
					var input any = line
					if jsonInput {
						decoded, err := intake.DecodeInput(json.RawMessage(line))
						if err != nil {
							return fmt.Errorf("line is not valid JSON: %w", err)
						}
						input = decoded
					}
					if err := printResult(out, opts, p.Process(cmd.Context(), input)); err != nil {
						return err
					}
				}
				if readErr == io.EOF {
					break
				}
			}
			return printReport(out, opts, p.Snapshot())
		},
	}
	cmd.Flags().BoolVar(&jsonInput, "json-input", false, "decode each stdin line as a JSON value (null, numbers and arrays are rejected)")
	return cmd
}

// demoSets are the sample message sets run by the demo command.
var demoSets = map[string][]any{
	// every outcome once
	"basic": {
		"Is there a bus to Jerusalem?",
		"URGENT please help ASAP",
		"",
		nil,
		123,
	},
	"conversation": {
		"Hello! Can you help me find bus schedules please?",
		"I need this information ASAP!",
		"Good morning, what are the routes?",
		"",
		nil,
		"Thank you for your help with the urgent request",
		123,
	},
	"validation": {
		"Hello, this is a good message!",
		"",
		nil,
		123,
		"   ",
		"What time is the bus?",
		[]any{},
	},
}

var demoSetOrder = []string{"basic", "conversation", "validation"}

func demoInputs(set string) ([]any, error) {
	if set == "all" {
		var inputs []any
		for _, name := range demoSetOrder {
			inputs = append(inputs, demoSets[name]...)
		}
		return inputs, nil
	}
	inputs, ok := demoSets[set]
	if !ok {
		return nil, fmt.Errorf("unknown demo set %q (want %s or all)", set, strings.Join(demoSetOrder, ", "))
	}
	return inputs, nil
}

func newDemoCommand(opts *rootOptions) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a fixed set of sample messages and print the statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := demoInputs(set)
			if err != nil {
				return err
			}
			p := newPipeline(cmd, opts)
			out := cmd.OutOrStdout()
			for _, input := range inputs {
				if err := printResult(out, opts, p.Process(cmd.Context(), input)); err != nil {
					return err
				}
			}
			return printReport(out, opts, p.Snapshot())
		},
	}
	cmd.Flags().StringVar(&set, "set", "basic", "sample set to run: "+strings.Join(demoSetOrder, ", ")+" or all")
	return cmd
}

func newPipeline(cmd *cobra.Command, opts *rootOptions) *analysis.Pipeline {
	logger, _ := logging.NewWithOptions(logging.Options{
		Level:  opts.logLevel,
		Format: "text",
		Writer: cmd.ErrOrStderr(),
	})
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	return analysis.NewPipeline(analysis.NewRecorder(), analysis.WithLogger(logger))
}

func printResult(w io.Writer, opts *rootOptions, res analysis.Result) error {
	if opts.jsonOutput {
		return json.NewEncoder(w).Encode(res)
	}
	if !res.Succeeded() {
		_, err := fmt.Fprintf(w, "#%d failed %s: %s\n", res.Sequence, res.Error.Kind, res.Error.Message)
		return err
	}
	c := res.Classification
	flags := c.Flags()
	flagText := "none"
	if len(flags) > 0 {
		flagText = strings.Join(flags, ",")
	}
	_, err := fmt.Fprintf(w, "#%d success words=%d chars=%d flags=%s\n", res.Sequence, c.WordCount, c.CharCount, flagText)
	return err
}

func printReport(w io.Writer, opts *rootOptions, report analysis.Report) error {
	if opts.jsonOutput {
		return json.NewEncoder(w).Encode(map[string]analysis.Report{"stats": report})
	}
	_, err := fmt.Fprintf(w, "processed=%d succeeded=%d failed=%d success_rate=%.1f%%\n",
		report.TotalProcessed, report.Succeeded, report.Failed, report.SuccessRate*100)
	return err
}
