package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/kdhira/loginzap/internal/config"
	"github.com/kdhira/loginzap/internal/settings"
)

type storeFlags struct {
	configPath string
	backend    string
	path       string
	dsn        string
}

func newRootCmd() *cobra.Command {
	sf := &storeFlags{}
	rootCmd := &cobra.Command{
		Use:           "loginzapctl",
		Short:         "Administer a loginzap installation",
		Long:          `loginzapctl reads and writes loginzap settings and prepares password hashes for its configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&sf.configPath, "config", "", "path to the loginzap YAML/JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&sf.backend, "settings-backend", "file", "settings store backend: memory, file or mysql")
	rootCmd.PersistentFlags().StringVar(&sf.path, "settings-path", "data/settings.yaml", "path to the YAML settings file (file backend)")
	rootCmd.PersistentFlags().StringVar(&sf.dsn, "settings-dsn", "", "MySQL DSN (mysql backend)")

	rootCmd.AddCommand(newSettingsCmd(sf), newHashPasswordCmd())
	return rootCmd
}

func newSettingsCmd(sf *storeFlags) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the webhook URL",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the configured webhook URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := sf.open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			url, err := store.Get(cmd.Context(), settings.WebhookURLKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	})

	var force bool
	setCmd := &cobra.Command{
		Use:   "set <url>",
		Short: "Store a new webhook URL (empty string disables delivery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if url != "" && !settings.ValidURL(url) && !force {
				return fmt.Errorf("not a valid webhook URL: %q (use --force to store it anyway)", url)
			}
			store, err := sf.open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(cmd.Context(), settings.WebhookURLKey, url); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Done!")
			return nil
		},
	}
	setCmd.Flags().BoolVar(&force, "force", false, "store the value even if it is not a valid URL")
	settingsCmd.AddCommand(setCmd)

	return settingsCmd
}

func newHashPasswordCmd() *cobra.Command {
	var cost int
	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin_password_hash or users[].password_hash",
		Long:  `hash-password hashes its argument, or the first line of stdin when no argument is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	hashCmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return hashCmd
}

// open resolves the settings backend from the config file, letting
// explicitly set flags take precedence.
func (sf *storeFlags) open(cmd *cobra.Command) (settings.Store, error) {
	opts := settings.Options{Backend: sf.backend, Path: sf.path, DSN: sf.dsn}
	if sf.configPath != "" {
		fc, err := config.LoadFile(sf.configPath)
		if err != nil {
			return nil, err
		}
		flags := cmd.Flags()
		if fc.SettingsBackend != "" && !flags.Changed("settings-backend") {
			opts.Backend = fc.SettingsBackend
		}
		if fc.SettingsPath != "" && !flags.Changed("settings-path") {
			opts.Path = fc.SettingsPath
		}
		if fc.SettingsDSN != "" && !flags.Changed("settings-dsn") {
			opts.DSN = fc.SettingsDSN
		}
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return settings.Open(ctx, opts)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loginzapctl:", err)
		os.Exit(1)
	}
}
