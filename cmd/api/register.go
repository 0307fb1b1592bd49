package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"auth-core/internal/app"
	"auth-core/internal/auth"
	"auth-core/internal/config"
	"auth-core/internal/observability"
)

var registerPassword string

var registerCmd = &cobra.Command{
	Use:   "register <identity>",
	Short: "Create an identity in the configured credential store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{LoadDotEnv: loadDotEnv})
		if err != nil {
			return err
		}

		password := registerPassword
		if password == "" {
			password, err = readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}

		ctx := context.Background()
		logger := observability.NewLoggerWithOutput(cmd.ErrOrStderr(), cfg.LogLevel)

		store, err := app.OpenStore(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		service, err := app.NewService(cfg, store)
		if err != nil {
			return err
		}

		if err := service.Register(ctx, args[0], password); err != nil {
			if errors.Is(err, auth.ErrDuplicateIdentity) {
				return fmt.Errorf("identity %q already exists", args[0])
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", strings.TrimSpace(args[0]))
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password (read from stdin when empty)")
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
