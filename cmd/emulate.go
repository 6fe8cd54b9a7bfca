// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/lumen/internal/emulator"
	"github.com/spf13/cobra"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a TCP LED device emulator",
	Long: `Listen on TCP and answer toggle commands like the device firmware.

The LED state is shared by every client. --format selects the response
layout. --fault makes the emulator misbehave:
  none     answer normally
  bad-ack  answer with NAK (0x15) in place of the acknowledgement
  drop     close the connection without answering`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().String("listen", "", "Listen address (host:port)")
	emulateCmd.Flags().String("initial", "", "Initial LED state (on or off)")
	emulateCmd.Flags().String("fault", "", "Fault to inject (none, bad-ack, drop)")
	rootCmd.AddCommand(emulateCmd)
}

func parseFault(v string) (emulator.Fault, error) {
	switch v {
	case "", "none":
		return emulator.FaultNone, nil
	case "bad-ack":
		return emulator.FaultBadAck, nil
	case "drop":
		return emulator.FaultDropAfterCommand, nil
	default:
		return emulator.FaultNone, fmt.Errorf("unknown fault %q", v)
	}
}

func runEmulate(cmd *cobra.Command, args []string) error {
	fault, err := parseFault(cfg.Emulate.Fault)
	if err != nil {
		return err
	}

	dev := emulator.New(emulator.Config{
		Format:  cfg.Format,
		Initial: cfg.Emulate.Initial,
		Fault:   fault,
		Logger:  logger.With().Str("component", "emulator").Logger(),
	})

	logger.Info().
		Str("listen", cfg.Emulate.Listen).
		Stringer("format", cfg.Format).
		Stringer("initial", cfg.Emulate.Initial).
		Str("fault", cfg.Emulate.Fault).
		Msg("emulator starting")

	if err := dev.ListenAndServe(cmd.Context(), cfg.Emulate.Listen); err != nil {
		return err
	}
	logger.Info().Uint64("toggles", dev.Toggles()).Stringer("state", dev.State()).Msg("emulator stopped")
	return nil
}
