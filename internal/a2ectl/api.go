// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"github.com/spf13/cobra"

	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/search"
)

func (e *cmdEnv) registry() (*registry.Registry, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	// CLI edits go through keyword search only; the server reindexes on
	// startup when semantic search is enabled.
	return registry.New(cfg.Registry, search.NoopIndexer{}, e.logger())
}

func newAPICmd(env *cmdEnv) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Manage the API registry",
	}

	var id string
	importCmd := &cobra.Command{
		Use:   "import <openapi-file>",
		Short: "Import an OpenAPI 3 document into the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			api, err := reg.ImportOpenAPI(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			env.printf("Imported API %s (%d endpoints).\n", api.ID, len(api.Endpoints))
			return nil
		},
	}
	importCmd.Flags().StringVar(&id, "id", "",
		"registry id for the API (defaults to a slug of the document title)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			return env.printJSON(reg.ListAPIs())
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <api-id>",
		Short: "Remove an API from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := env.registry()
			if err != nil {
				return err
			}
			if err := reg.RemoveAPI(cmd.Context(), args[0]); err != nil {
				return err
			}
			env.printf("API %s removed.\n", args[0])
			return nil
		},
	}

	apiCmd.AddCommand(importCmd, listCmd, removeCmd)
	return apiCmd
}
