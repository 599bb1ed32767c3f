// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Ferryman using the Cobra
// library. Running without a subcommand unlocks the vault and launches the
// interactive TUI; subcommands cover vault and trust-store maintenance.

package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ferryman-ssh/ferryman/internal/config"
	"github.com/ferryman-ssh/ferryman/internal/hostkeys"
	"github.com/ferryman-ssh/ferryman/internal/logging"
	"github.com/ferryman-ssh/ferryman/internal/session"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
	"github.com/ferryman-ssh/ferryman/internal/store"
	"github.com/ferryman-ssh/ferryman/internal/transfer"
	"github.com/ferryman-ssh/ferryman/internal/tui"
	"github.com/ferryman-ssh/ferryman/internal/vault"
)

var version = "dev" // set by the linker

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ferryman",
		Short: "Ferryman is a terminal SSH client with an encrypted connection vault.",
		Long: `Ferryman keeps your SSH connections in a master-password-encrypted
vault, opens them as concurrent session tabs, and moves files over SFTP
with a guided transfer wizard.

Running without a subcommand launches the interactive TUI.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	cmd.AddCommand(changePasswordCmd)
	cmd.AddCommand(trustHostCmd)
	cmd.AddCommand(listCmd)

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/ferryman/ferryman.yaml)")
	return cmd
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logging.Prune(cfg.LogPath)
	log := logging.New(cfg.LogPath)
	defer func() { _ = log.Sync() }()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Lock()

	hosts, err := hostkeys.Open(cfg.KnownHostsPath)
	if err != nil {
		return fmt.Errorf("open known hosts store: %w", err)
	}
	defer hosts.Close()

	dialer := &sshx.NetDialer{Timeout: cfg.ConnectTimeout, HostKeys: hosts}
	mgr := session.NewManager(dialer, st, log)
	eng := transfer.NewEngine(mgr, afero.NewOsFs(), log, transfer.Options{
		ChunkSize:        cfg.ChunkSize,
		ProgressInterval: cfg.ProgressInterval,
	})
	mgr.SetTransferCanceller(eng)

	app := tui.New(st, mgr, eng, hosts, cfg, log)
	program := tea.NewProgram(app, tea.WithAltScreen())
	_, err = program.Run()
	mgr.CloseAll()
	return err
}

// openStore unlocks an existing vault or initializes a new one, prompting
// on the terminal.
func openStore(cfg config.Config) (*store.Store, error) {
	v := vault.New(cfg.VaultPath)
	if !v.Exists() {
		fmt.Printf("No vault at %s; creating one.\n", cfg.VaultPath)
		password, err := promptNewPassword()
		if err != nil {
			return nil, err
		}
		return store.Create(v, password)
	}

	for attempt := 0; attempt < 3; attempt++ {
		password, err := promptPassword("Master password: ")
		if err != nil {
			return nil, err
		}
		st, err := store.Open(v, password)
		if err == nil {
			return st, nil
		}
		if errors.Is(err, vault.ErrWrongPassword) {
			fmt.Fprintln(os.Stderr, "wrong password")
			continue
		}
		return nil, err
	}
	return nil, errors.New("too many failed unlock attempts")
}

func promptNewPassword() (string, error) {
	for {
		first, err := promptPassword("New master password: ")
		if err != nil {
			return "", err
		}
		if first == "" {
			fmt.Fprintln(os.Stderr, "password must not be empty")
			continue
		}
		second, err := promptPassword("Repeat master password: ")
		if err != nil {
			return "", err
		}
		if first != second {
			fmt.Fprintln(os.Stderr, "passwords do not match")
			continue
		}
		return first, nil
	}
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
