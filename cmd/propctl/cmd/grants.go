package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantsCmd(with func(runFunc) func(*cobra.Command, []string) error) *cobra.Command {
	grantsCmd := &cobra.Command{
		Use:   "grants",
		Short: "Manage workstream and property group grants",
	}

	var (
		accountID, workstreamID, permission string
		revokeWorkstream                    bool
	)
	workstreamCmd := &cobra.Command{
		Use:   "workstream",
		Short: "Set or revoke an account's permission in a workstream",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *session) error {
			if revokeWorkstream {
				if err := s.admin.RevokeWorkstream(cmd.Context(), accountID, workstreamID); err != nil {
					return fmt.Errorf("failed to revoke workstream grant: %w", err)
				}
				return printJSON(s.out, map[string]string{"account_id": accountID, "workstream_id": workstreamID, "status": "revoked"})
			}
			if permission == "" {
				return fmt.Errorf("--permission is required unless --revoke is set")
			}
			grant, err := s.admin.GrantWorkstream(cmd.Context(), accountID, workstreamID, permission)
			if err != nil {
				return fmt.Errorf("failed to grant workstream: %w", err)
			}
			return printJSON(s.out, grant)
		}),
	}
	workstreamCmd.Flags().StringVar(&accountID, "account", "", "Account id")
	workstreamCmd.Flags().StringVar(&workstreamID, "workstream", "", "Workstream id")
	workstreamCmd.Flags().StringVar(&permission, "permission", "", "Admin, Edit or Read")
	workstreamCmd.Flags().BoolVar(&revokeWorkstream, "revoke", false, "Remove the grant instead")
	_ = workstreamCmd.MarkFlagRequired("account")
	_ = workstreamCmd.MarkFlagRequired("workstream")

	var (
		groupAccountID, groupID string
		revokeGroup             bool
	)
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Grant or revoke property group access",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *session) error {
			set := s.admin.GrantPropertyGroup
			if revokeGroup {
				set = s.admin.RevokePropertyGroup
			}
			grant, err := set(cmd.Context(), groupAccountID, groupID)
			if err != nil {
				return fmt.Errorf("failed to update property group grant: %w", err)
			}
			return printJSON(s.out, grant)
		}),
	}
	groupCmd.Flags().StringVar(&groupAccountID, "account", "", "Account id")
	groupCmd.Flags().StringVar(&groupID, "group", "", "Property group id")
	groupCmd.Flags().BoolVar(&revokeGroup, "revoke", false, "Deactivate the grant instead")
	_ = groupCmd.MarkFlagRequired("account")
	_ = groupCmd.MarkFlagRequired("group")

	grantsCmd.AddCommand(workstreamCmd, groupCmd)
	return grantsCmd
}
