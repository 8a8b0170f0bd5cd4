// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/a2e-project/a2e/internal/registry"
)

// sqlSeed is the YAML shape accepted by "sql import": a list of catalog
// entries under a top-level "queries" key.
type sqlSeed struct {
	Queries []registry.SQLQuery `yaml:"queries"`
}

func newSQLCmd(env *cmdEnv) *cobra.Command {
	sqlCmd := &cobra.Command{
		Use:   "sql",
		Short: "Manage the SQL query catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import <seed-file>",
		Short: "Load catalog entries from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var seed sqlSeed
			if err := yaml.Unmarshal(raw, &seed); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if len(seed.Queries) == 0 {
				return fmt.Errorf("%s contains no queries", args[0])
			}
			for _, q := range seed.Queries {
				if err := reg.AddSQLQuery(cmd.Context(), q); err != nil {
					return err
				}
			}
			env.printf("Imported %d SQL queries.\n", len(seed.Queries))
			return nil
		},
	}

	var (
		database string
		category string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			return env.printJSON(reg.ListSQLQueries(database, category))
		},
	}
	listCmd.Flags().StringVar(&database, "database", "", "filter by target database")
	listCmd.Flags().StringVar(&category, "category", "", "filter by category")

	removeCmd := &cobra.Command{
		Use:   "remove <query-id>",
		Short: "Remove a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			if err := reg.RemoveSQLQuery(cmd.Context(), args[0]); err != nil {
				return err
			}
			env.printf("SQL query %s removed.\n", args[0])
			return nil
		},
	}

	sqlCmd.AddCommand(importCmd, listCmd, removeCmd)
	return sqlCmd
}
