// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/spf13/cobra"
)

var (
	toggleCount    int
	toggleInterval time.Duration
	toggleStats    bool
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle the LED and print the new state",
	Long: `Connect to the device, send one or more toggle commands, and print the
state the device reports after each one.

A protocol failure (a response that does not start with the acknowledgement)
is reported and the next toggle is still sent. A transport failure ends the
run.`,
	Args: cobra.NoArgs,
	RunE: runToggle,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
	toggleCmd.Flags().IntVarP(&toggleCount, "count", "c", 1, "Number of toggles to send")
	toggleCmd.Flags().DurationVar(&toggleInterval, "interval", 0, "Pause between toggles")
	toggleCmd.Flags().BoolVar(&toggleStats, "stats", false, "Print statistics at the end")
}

func runToggle(cmd *cobra.Command, args []string) error {
	if toggleCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	ctx := cmd.Context()

	obs, err := newObservers(cfg)
	if err != nil {
		return err
	}
	defer obs.Close()

	conn, connInfo, err := OpenConnection(ctx, cfg, obs.options()...)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	if toggleCount > 1 || toggleStats {
		fmt.Printf("Connection: %s\n", connInfo)
	}

	var protocolErrs int
	for i := 1; i <= toggleCount; i++ {
		start := time.Now()
		state, err := conn.SendCommand(ctx)
		rtt := time.Since(start)

		prefix := ""
		if toggleCount > 1 {
			prefix = fmt.Sprintf("Toggle %d/%d: ", i, toggleCount)
		}

		if err != nil {
			fmt.Printf("%sFAILED: %v\n", prefix, err)
			if conn.State() == ledconn.StateClosed || ctx.Err() != nil {
				return err
			}
			protocolErrs++
		} else {
			fmt.Printf("%sLED %s (%v)\n", prefix, strings.ToUpper(state.String()), rtt.Round(time.Microsecond))
		}

		if i < toggleCount && toggleInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(toggleInterval):
			}
		}
	}

	if toggleCount > 1 || toggleStats {
		fmt.Println()
		fmt.Print(obs.stats.String())
	}

	if protocolErrs > 0 {
		return fmt.Errorf("%d of %d toggles failed", protocolErrs, toggleCount)
	}
	return nil
}
