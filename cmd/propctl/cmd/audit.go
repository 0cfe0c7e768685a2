package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"propertyhub.org/internal/audit"
)

func newAuditCmd(with func(runFunc) func(*cobra.Command, []string) error) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	var filter audit.Filter
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *session) error {
			entries, err := s.recorder.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list audit entries: %w", err)
			}
			if entries == nil {
				entries = []audit.Entry{}
			}
			return printJSON(s.out, entries)
		}),
	}
	listCmd.Flags().StringVar(&filter.EntityType, "entity-type", "", "Filter by entity type")
	listCmd.Flags().StringVar(&filter.EntityID, "entity-id", "", "Filter by entity id")
	listCmd.Flags().StringVar(&filter.ActorID, "actor", "", "Filter by actor id")
	listCmd.Flags().IntVar(&filter.Limit, "limit", audit.DefaultListLimit, "Maximum entries to return")

	auditCmd.AddCommand(listCmd)
	return auditCmd
}
