// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package a2ectl

import (
	"github.com/spf13/cobra"

	"github.com/a2e-project/a2e/internal/audit"
)

func (e *cmdEnv) journal() (*audit.Journal, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return audit.New(cfg.Audit, e.logger())
}

func newAuditCmd(env *cmdEnv) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the execution journal",
	}

	var (
		agentID    string
		workflowID string
		status     string
		limit      int
	)
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "List journal events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := env.journal()
			if err != nil {
				return err
			}
			events, err := j.Query(audit.Filter{
				AgentID:    agentID,
				WorkflowID: workflowID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			return env.printJSON(events)
		},
	}
	queryCmd.Flags().StringVar(&agentID, "agent", "", "filter by agent id")
	queryCmd.Flags().StringVar(&workflowID, "workflow", "", "filter by workflow id")
	queryCmd.Flags().StringVar(&status, "status", "", "filter by status")
	queryCmd.Flags().IntVar(&limit, "limit", 0, "maximum events to return")

	detailsCmd := &cobra.Command{
		Use:   "details <execution-id>",
		Short: "Show the full timeline of one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := env.journal()
			if err != nil {
				return err
			}
			details, err := j.Details(args[0])
			if err != nil {
				return err
			}
			return env.printJSON(details)
		},
	}

	auditCmd.AddCommand(queryCmd, detailsCmd)
	return auditCmd
}
