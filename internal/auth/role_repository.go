package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RoleRepository defines the interface for role persistence.
type RoleRepository interface {
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByCode(ctx context.Context, code RoleCode) (*Role, error)
	List(ctx context.Context, visibleOnly bool) ([]Role, error)
	ListByCodes(ctx context.Context, codes []RoleCode) ([]Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id int64) error
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

const roleSelect = `SELECT id, name, ref_code, description, is_visible, created_by, created_at,
	updated_by, updated_at FROM roles`

// GetByID retrieves a role by id.
func (r *SQLiteRoleRepository) GetByID(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+" WHERE id = ?", id))
}

// GetByCode retrieves a role by reference code, case-insensitively.
func (r *SQLiteRoleRepository) GetByCode(ctx context.Context, code RoleCode) (*Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+" WHERE ref_code = ?", string(code)))
}

// List returns roles ordered by id.
func (r *SQLiteRoleRepository) List(ctx context.Context, visibleOnly bool) ([]Role, error) {
	query := roleSelect
	if visibleOnly {
		query += " WHERE is_visible = 1"
	}
	return r.list(ctx, query+" ORDER BY id ASC")
}

// ListByCodes returns the roles whose reference codes are in codes.
// Unknown codes are ignored.
func (r *SQLiteRoleRepository) ListByCodes(ctx context.Context, codes []RoleCode) ([]Role, error) {
	if len(codes) == 0 {
		return []Role{}, nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = string(c)
	}
	return r.list(ctx, roleSelect+" WHERE ref_code IN ("+placeholders(len(codes))+") ORDER BY id ASC", args...)
}

func (r *SQLiteRoleRepository) list(ctx context.Context, query string, args ...any) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// Create inserts a role and sets its generated id.
func (r *SQLiteRoleRepository) Create(ctx context.Context, role *Role) error {
	now := formatTime(time.Now())
	role.CreatedAt = parseTime(now)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (name, ref_code, description, is_visible, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		role.Name, string(role.RefCode), nullString(role.Description), boolToInt(role.IsVisible),
		role.CreatedBy, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("creating role: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading role id: %w", err)
	}
	role.ID = id
	return nil
}

// Update writes name, reference code, description and visibility.
func (r *SQLiteRoleRepository) Update(ctx context.Context, role *Role) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, ref_code = ?, description = ?, is_visible = ?,
		 updated_by = ?, updated_at = ? WHERE id = ?`,
		role.Name, string(role.RefCode), nullString(role.Description), boolToInt(role.IsVisible),
		nullString(role.UpdatedBy), formatTime(now), role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("updating role: %w", err)
	}
	if err := requireRow(res, ErrRoleNotFound); err != nil {
		return err
	}
	ts := parseTime(formatTime(now))
	role.UpdatedAt = &ts
	return nil
}

// Delete removes a role. Grants cascade; a role still assigned to an
// account is refused by the foreign key.
func (r *SQLiteRoleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrRoleInUse
		}
		return fmt.Errorf("deleting role: %w", err)
	}
	return requireRow(res, ErrRoleNotFound)
}

func scanRole(s scanner) (*Role, error) {
	var role Role
	var code, createdAt string
	var isVisible int
	var description, updatedBy, updatedAt sql.NullString

	err := s.Scan(&role.ID, &role.Name, &code, &description, &isVisible,
		&role.CreatedBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}

	role.RefCode = RoleCode(code)
	role.Description = description.String
	role.IsVisible = isVisible != 0
	role.CreatedAt = parseTime(createdAt)
	role.UpdatedBy = updatedBy.String
	role.UpdatedAt = parseNullTime(updatedAt)

	return &role, nil
}
