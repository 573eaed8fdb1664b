package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the bootstrap password.
const seedPasswordBytes = 16

// BootstrapAccount names the first SYSADMIN account.
type BootstrapAccount struct {
	Username string
	Email    string
}

// Bootstrap creates the first SYSADMIN account if no accounts exist.
// The generated password is logged once and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func Bootstrap(ctx context.Context, accounts AccountRepository, roles RoleRepository, spec BootstrapAccount, logger *slog.Logger) (string, error) {
	count, err := accounts.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}
	if count > 0 {
		logger.Info("accounts exist, skipping bootstrap")
		return "", nil
	}

	role, err := roles.GetByCode(ctx, RoleSysAdmin)
	if err != nil {
		return "", fmt.Errorf("resolving SYSADMIN role: %w", err)
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating bootstrap password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing bootstrap password: %w", err)
	}

	admin := &Account{
		Username:     spec.Username,
		Email:        spec.Email,
		FirstName:    "System",
		LastName:     "Administrator",
		PasswordHash: hash,
		RoleID:       role.ID,
		RoleCode:     role.RefCode,
		RoleName:     role.Name,
		CreatedBy:    "system",
	}
	if err := accounts.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating bootstrap account: %w", err)
	}

	logger.Warn("bootstrap SYSADMIN account created",
		"username", spec.Username,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
