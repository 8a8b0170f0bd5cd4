// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/a2e-project/a2e/internal/vault"
)

func (e *cmdEnv) vault() (*vault.Vault, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	masterKey := os.Getenv(cfg.Vault.MasterKeyEnv)
	if masterKey == "" {
		return nil, fmt.Errorf("environment variable %s must be set", cfg.Vault.MasterKeyEnv)
	}
	return vault.New(cfg.Vault.Path, masterKey, e.logger())
}

func newCredentialCmd(env *cmdEnv) *cobra.Command {
	credentialCmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Manage vault credentials",
	}

	var (
		kind        string
		description string
		data        []string
		metadata    []string
	)
	storeCmd := &cobra.Command{
		Use:   "store <credential-id>",
		Short: "Store or update a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := env.vault()
			if err != nil {
				return err
			}
			dataMap, err := parsePairs(data)
			if err != nil {
				return err
			}
			metaMap, err := parsePairs(metadata)
			if err != nil {
				return err
			}
			cred := vault.Credential{
				ID:          args[0],
				Kind:        kind,
				Description: description,
				Metadata:    metaMap,
				Data:        dataMap,
			}
			if err := v.Store(cred); err != nil {
				return err
			}
			env.printf("Credential %s stored.\n", args[0])
			return nil
		},
	}
	storeCmd.Flags().StringVar(&kind, "kind", vault.KindAPIKey,
		"credential kind (api-key, bearer-token, basic-auth, password, oauth2, custom)")
	storeCmd.Flags().StringVar(&description, "description", "", "searchable description")
	storeCmd.Flags().StringArrayVar(&data, "data", nil,
		"secret field as key=value (repeatable)")
	storeCmd.Flags().StringArrayVar(&metadata, "metadata", nil,
		"non-secret metadata as key=value (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials without secret material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := env.vault()
			if err != nil {
				return err
			}
			return env.printJSON(v.List())
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := env.vault()
			if err != nil {
				return err
			}
			if err := v.Delete(args[0]); err != nil {
				return err
			}
			env.printf("Credential %s deleted.\n", args[0])
			return nil
		},
	}

	credentialCmd.AddCommand(storeCmd, listCmd, deleteCmd)
	return credentialCmd
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		out[key] = value
	}
	return out, nil
}
