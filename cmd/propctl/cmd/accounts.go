package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"propertyhub.org/internal/auth"
)

type createdAccount struct {
	Account     auth.Account    `json:"account"`
	GlobalAdmin *auth.RoleGrant `json:"global_admin,omitempty"`
}

func newAccountsCmd(with func(runFunc) func(*cobra.Command, []string) error) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Create and deactivate accounts",
	}

	var (
		email, name, password string
		passwordStdin         bool
		globalAdmin           bool
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, s *session) error {
			if passwordStdin {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}
			acct, err := s.admin.CreateAccount(cmd.Context(), auth.NewAccount{
				Email:       email,
				DisplayName: name,
				Password:    password,
			})
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}
			out := createdAccount{Account: acct}
			if globalAdmin {
				grant, err := s.admin.GrantGlobalAdmin(cmd.Context(), acct.ID)
				if err != nil {
					return fmt.Errorf("account %s created but global admin grant failed: %w", acct.ID, err)
				}
				out.GlobalAdmin = &grant
			}
			return printJSON(s.out, out)
		}),
	}
	createCmd.Flags().StringVar(&email, "email", "", "Sign-in email")
	createCmd.Flags().StringVar(&name, "name", "", "Display name")
	createCmd.Flags().StringVar(&password, "password", "", "Initial password")
	createCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	createCmd.Flags().BoolVar(&globalAdmin, "global-admin", false, "Also grant the Global Admin role")
	createCmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("name")

	var accountID string
	setActive := func(active bool) runFunc {
		return func(cmd *cobra.Command, s *session) error {
			acct, err := s.admin.SetActive(cmd.Context(), accountID, active)
			if err != nil {
				return fmt.Errorf("failed to update account: %w", err)
			}
			return printJSON(s.out, acct)
		}
	}
	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate an account so it can no longer sign in",
		Args:  cobra.NoArgs,
		RunE:  with(setActive(false)),
	}
	activateCmd := &cobra.Command{
		Use:   "activate",
		Short: "Reactivate an account",
		Args:  cobra.NoArgs,
		RunE:  with(setActive(true)),
	}
	for _, c := range []*cobra.Command{deactivateCmd, activateCmd} {
		c.Flags().StringVar(&accountID, "id", "", "Account id")
		_ = c.MarkFlagRequired("id")
	}

	accountsCmd.AddCommand(createCmd, deactivateCmd, activateCmd)
	return accountsCmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password on stdin")
	}
	return line, nil
}
