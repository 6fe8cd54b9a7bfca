// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Thermoquad/lumen/internal/session"
	"github.com/Thermoquad/lumen/pkg/ledconn"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for toggling the LED",
	Long: `Control the LED via an interactive terminal UI.

Enter the device address and port and press Enter to connect. Once
connected, Enter or Space toggles the LED and the state reported by the
device is shown. If the connection fails, the reason is shown and Enter
returns to the address form with the previous values filled in.

Keys:
  Tab/Shift+Tab  switch field (address form)
  Enter          connect / retry / toggle
  Space, t       toggle
  d              disconnect
  q, Esc         quit (Ctrl+C from any screen)

The TUI always connects over TCP. Logs go to --log-file, or nowhere.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	obs, err := newObservers(cfg)
	if err != nil {
		return err
	}
	defer obs.Close()

	opts := append(cfg.ConnOptions(), ledconn.WithLogger(logger))
	opts = append(opts, obs.options()...)
	machine := &session.Machine{
		Dial: func(ctx context.Context, host string, port uint16) (*ledconn.Conn, error) {
			return ledconn.Dial(ctx, host, port, opts...)
		},
	}

	port := ""
	if cfg.Port != 0 {
		port = strconv.Itoa(int(cfg.Port))
	}
	m := initialControlModel(ctx, machine, session.Initial(cfg.Host, port), obs.stats)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	cancel()

	if fm, ok := final.(controlModel); ok {
		if c, ok := fm.state.(session.Connected); ok && c.Conn != nil {
			c.Conn.Close()
		}
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
