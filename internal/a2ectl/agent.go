// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/a2e-project/a2e/internal/agentauth"
)

func (e *cmdEnv) agentService() (*agentauth.Service, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	signingKey := os.Getenv(cfg.Auth.SigningKeyEnv)
	if signingKey == "" {
		return nil, fmt.Errorf("environment variable %s must be set", cfg.Auth.SigningKeyEnv)
	}
	return agentauth.New(cfg.Auth, signingKey, e.logger())
}

func newAgentCmd(env *cmdEnv) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage registered agents",
	}

	var (
		name               string
		allowedAPIs        []string
		allowedCredentials []string
		allowedOperations  []string
	)
	registerCmd := &cobra.Command{
		Use:   "register <agent-id>",
		Short: "Register an agent and print its one-time API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.agentService()
			if err != nil {
				return err
			}
			key, err := svc.Register(args[0], name, allowedAPIs, allowedCredentials, allowedOperations, nil)
			if err != nil {
				return err
			}
			env.printf("Agent %s registered.\n", args[0])
			env.printf("API key (shown once, store it now): %s\n", key)
			return nil
		},
	}
	registerCmd.Flags().StringVar(&name, "name", "", "human-readable agent name")
	registerCmd.Flags().StringSliceVar(&allowedAPIs, "allow-api", nil,
		"API id the agent may call (repeatable; none means all)")
	registerCmd.Flags().StringSliceVar(&allowedCredentials, "allow-credential", nil,
		"credential id the agent may reference (repeatable; none means all)")
	registerCmd.Flags().StringSliceVar(&allowedOperations, "allow-operation", nil,
		"operation kind the agent may run (repeatable; none means all)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.agentService()
			if err != nil {
				return err
			}
			return env.printJSON(svc.List())
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <agent-id>",
		Short: "Remove an agent; its key and tokens stop working immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.agentService()
			if err != nil {
				return err
			}
			if err := svc.Remove(args[0]); err != nil {
				return err
			}
			env.printf("Agent %s removed.\n", args[0])
			return nil
		},
	}

	agentCmd.AddCommand(registerCmd, listCmd, removeCmd)
	return agentCmd
}

func newTokenCmd(env *cmdEnv) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue <agent-id>",
		Short: "Issue a short-lived bearer token for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.agentService()
			if err != nil {
				return err
			}
			token, err := svc.IssueToken(args[0])
			if err != nil {
				return err
			}
			env.printf("%s\n", token)
			return nil
		},
	}

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
