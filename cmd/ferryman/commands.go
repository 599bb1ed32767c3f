// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ferryman-ssh/ferryman/internal/config"
	"github.com/ferryman-ssh/ferryman/internal/hostkeys"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
	"github.com/ferryman-ssh/ferryman/internal/store"
	"github.com/ferryman-ssh/ferryman/internal/vault"
)

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the vault master password",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		v := vault.New(cfg.VaultPath)
		if !v.Exists() {
			return fmt.Errorf("no vault at %s", cfg.VaultPath)
		}
		oldPassword, err := promptPassword("Current master password: ")
		if err != nil {
			return err
		}
		newPassword, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := v.ChangePassword(oldPassword, newPassword); err != nil {
			if errors.Is(err, vault.ErrWrongPassword) {
				return errors.New("wrong password")
			}
			return err
		}
		fmt.Println("master password changed")
		return nil
	},
}

var trustHostPort int

var trustHostCmd = &cobra.Command{
	Use:   "trust-host <host>",
	Short: "Fetch a host's SSH key and add it to the trust store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		host := args[0]
		line, err := sshx.FetchHostKey(host, trustHostPort, cfg.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("fetch host key for %s: %w", host, err)
		}
		fmt.Printf("%s presents:\n  %s\n", host, line)

		hosts, err := hostkeys.Open(cfg.KnownHostsPath)
		if err != nil {
			return fmt.Errorf("open known hosts store: %w", err)
		}
		defer hosts.Close()

		if known, err := hosts.Get(host); err == nil && known != "" && known != line {
			fmt.Fprintln(os.Stderr, "warning: replacing a different stored key for this host")
		}
		if err := hosts.Trust(host, line); err != nil {
			return err
		}
		fmt.Printf("trusted %s\n", host)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored connections, most recently used first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		v := vault.New(cfg.VaultPath)
		if !v.Exists() {
			return fmt.Errorf("no vault at %s", cfg.VaultPath)
		}
		password, err := promptPassword("Master password: ")
		if err != nil {
			return err
		}
		st, err := store.Open(v, password)
		if err != nil {
			if errors.Is(err, vault.ErrWrongPassword) {
				return errors.New("wrong password")
			}
			return err
		}
		defer st.Lock()

		records := st.List()
		if len(records) == 0 {
			fmt.Println("no connections stored")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTARGET\tAUTH\tLAST USED")
		for _, rec := range records {
			lastUsed := "never"
			if !rec.LastUsedAt.IsZero() {
				lastUsed = rec.LastUsedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s@%s\t%s\t%s\n",
				rec.Label(), rec.User, rec.Address(), rec.Credential.Kind, lastUsed)
		}
		return w.Flush()
	},
}

func init() {
	trustHostCmd.Flags().IntVar(&trustHostPort, "port", 22, "SSH port to probe")
}
