// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/lumen/internal/capture"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <capture-file>",
	Short: "Print a recorded capture file",
	Long: `Print every exchange in a capture file written with --capture,
followed by a summary. Each line shows the bytes sent and received and
the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

var traceErrorsOnly bool

func init() {
	traceCmd.Flags().BoolVar(&traceErrorsOnly, "errors", false, "Only print failed exchanges")
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	var sum capture.Summary

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", sum.Total+1, err)
		}
		sum.Add(rec)

		if traceErrorsOnly && rec.Error == "" {
			continue
		}
		fmt.Fprintln(out, capture.Format(rec))
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, sum.String())
	return nil
}
