package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/config"
	"propertyhub.org/internal/obs"
)

// seedCatalog gives an in-memory store the Property Hub workstream that
// the SQL seeds provide in PostgreSQL.
func seedCatalog(ctx context.Context, admin *auth.Admin) error {
	hub := true
	_, err := admin.CreateWorkstream(ctx, "Property Hub", &hub)
	if errors.Is(err, auth.ErrConflict) {
		return nil
	}
	return err
}

// bootstrapAdmin creates the configured account with the Global Admin
// role. An existing account with that email keeps its password; it only
// gains the role if an earlier run stopped before granting it.
func bootstrapAdmin(ctx context.Context, admin *auth.Admin, creds auth.CredentialStore, cfg config.BootstrapConfig) error {
	email := strings.TrimSpace(cfg.AdminEmail)
	acct, err := admin.CreateAccount(ctx, auth.NewAccount{
		Email:       email,
		DisplayName: "Administrator",
		Password:    cfg.AdminPassword,
	})
	if errors.Is(err, auth.ErrConflict) {
		return ensureGlobalAdmin(ctx, admin, creds, email)
	}
	if err != nil {
		return err
	}
	if _, err := admin.GrantGlobalAdmin(ctx, acct.ID); err != nil {
		return err
	}
	obs.Logger().Info("bootstrap_admin_created", slog.String("account_id", acct.ID))
	return nil
}

func ensureGlobalAdmin(ctx context.Context, admin *auth.Admin, creds auth.CredentialStore, email string) error {
	id, err := creds.IdentityByEmail(ctx, email)
	if err != nil {
		return err
	}
	for _, g := range id.Roles {
		if g.Role.Kind == auth.GlobalAdminKind {
			obs.Logger().Info("bootstrap_admin_exists", slog.String("email", email))
			return nil
		}
	}
	if _, err := admin.GrantGlobalAdmin(ctx, id.Account.ID); err != nil {
		return err
	}
	obs.Logger().Warn("bootstrap_admin_role_restored", slog.String("account_id", id.Account.ID))
	return nil
}
