// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2ectl implements the a2ectl administration CLI. It operates on
// the same data files the API server uses, so it is meant to run on the
// server host (or against a shared volume) while the server is stopped or
// for read-only inspection.
package a2ectl

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	apiconfig "github.com/a2e-project/a2e/internal/a2e-api/config"
)

// NewRootCmd builds the a2ectl command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "a2ectl",
		Short:         "Administer an A2E installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config",
		os.Getenv("A2E_CONFIG_PATH"), "path to the YAML config file")

	env := &cmdEnv{configPath: &configPath, root: rootCmd}

	rootCmd.AddCommand(
		newAgentCmd(env),
		newTokenCmd(env),
		newCredentialCmd(env),
		newAuditCmd(env),
		newAPICmd(env),
		newSQLCmd(env),
	)
	return rootCmd
}

// cmdEnv carries the lazily loaded configuration shared by subcommands.
type cmdEnv struct {
	configPath *string
	root       *cobra.Command
	cfg        *apiconfig.Config
}

// out resolves the output writer at call time so SetOut on the root
// command (e.g. from tests) takes effect.
func (e *cmdEnv) out() io.Writer {
	return e.root.OutOrStdout()
}

func (e *cmdEnv) config() (*apiconfig.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := apiconfig.Load(*e.configPath, nil)
	if err != nil {
		return nil, err
	}
	e.cfg = cfg
	return cfg, nil
}

// logger returns a quiet logger so component construction noise does not
// pollute CLI output.
func (e *cmdEnv) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func (e *cmdEnv) printJSON(v any) error {
	enc := json.NewEncoder(e.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *cmdEnv) printf(format string, args ...any) {
	fmt.Fprintf(e.out(), format, args...)
}
