package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CatalogRepository defines persistence for modules, capabilities and
// role grants.
type CatalogRepository interface {
	ListModules(ctx context.Context) ([]Module, error)
	ListModulesByIDs(ctx context.Context, ids []int64) ([]Module, error)
	GetModule(ctx context.Context, id int64) (*Module, error)
	CreateModule(ctx context.Context, m *Module) error

	ListCapabilities(ctx context.Context) ([]Capability, error)
	ListCapabilitiesByIDs(ctx context.Context, ids []int64) ([]Capability, error)
	GetCapability(ctx context.Context, id int64) (*Capability, error)
	CreateCapability(ctx context.Context, c *Capability) error

	GrantedCapabilityIDs(ctx context.Context, roleID int64) ([]int64, error)
	HasGrant(ctx context.Context, roleID int64, refCode string) (bool, error)
	ReplaceGrants(ctx context.Context, roleID int64, capabilityIDs []int64, actorID string, now time.Time) ([]string, error)
}

// SQLiteCatalogRepository implements CatalogRepository using SQLite.
type SQLiteCatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new SQLite-backed catalog repository.
func NewCatalogRepository(db *sql.DB) *SQLiteCatalogRepository {
	return &SQLiteCatalogRepository{db: db}
}

const moduleColumns = `id, name, ref_code, parent_id, sort_order, logo_name, redirect_page,
	is_visible, description, created_by, created_at, updated_by, updated_at`

const capabilityColumns = `id, module_id, name, ref_code, parent_id, is_visible, description,
	created_by, created_at, updated_by, updated_at`

// ListModules returns every module ordered by id.
func (r *SQLiteCatalogRepository) ListModules(ctx context.Context) ([]Module, error) {
	return r.listModules(ctx, "SELECT "+moduleColumns+" FROM modules ORDER BY id ASC")
}

// ListModulesByIDs returns the modules with the given ids ordered by id.
func (r *SQLiteCatalogRepository) ListModulesByIDs(ctx context.Context, ids []int64) ([]Module, error) {
	if len(ids) == 0 {
		return []Module{}, nil
	}
	return r.listModules(ctx,
		"SELECT "+moduleColumns+" FROM modules WHERE id IN ("+placeholders(len(ids))+") ORDER BY id ASC",
		int64Args(ids)...)
}

func (r *SQLiteCatalogRepository) listModules(ctx context.Context, query string, args ...any) ([]Module, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	defer rows.Close()

	modules := []Module{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating modules: %w", err)
	}
	return modules, nil
}

// GetModule retrieves a module by id.
func (r *SQLiteCatalogRepository) GetModule(ctx context.Context, id int64) (*Module, error) {
	return scanModule(r.db.QueryRowContext(ctx, "SELECT "+moduleColumns+" FROM modules WHERE id = ?", id))
}

// CreateModule inserts a module and sets its ID.
func (r *SQLiteCatalogRepository) CreateModule(ctx context.Context, m *Module) error {
	now := formatTime(time.Now())
	m.CreatedAt = parseTime(now)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO modules (name, ref_code, parent_id, sort_order, logo_name, redirect_page,
		 is_visible, description, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.RefCode, nullID(m.ParentID), m.SortOrder, nullString(m.LogoName),
		nullString(m.RedirectPage), boolToInt(m.IsVisible), nullString(m.Description),
		m.CreatedBy, now,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrModuleExists
		case isForeignKeyViolation(err):
			return ErrModuleNotFound
		}
		return fmt.Errorf("creating module: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading module id: %w", err)
	}
	m.ID = id
	return nil
}

// ListCapabilities returns every capability ordered by id.
func (r *SQLiteCatalogRepository) ListCapabilities(ctx context.Context) ([]Capability, error) {
	return r.listCapabilities(ctx, "SELECT "+capabilityColumns+" FROM capabilities ORDER BY id ASC")
}

// ListCapabilitiesByIDs returns the capabilities with the given ids ordered by id.
func (r *SQLiteCatalogRepository) ListCapabilitiesByIDs(ctx context.Context, ids []int64) ([]Capability, error) {
	if len(ids) == 0 {
		return []Capability{}, nil
	}
	return r.listCapabilities(ctx,
		"SELECT "+capabilityColumns+" FROM capabilities WHERE id IN ("+placeholders(len(ids))+") ORDER BY id ASC",
		int64Args(ids)...)
}

func (r *SQLiteCatalogRepository) listCapabilities(ctx context.Context, query string, args ...any) ([]Capability, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing capabilities: %w", err)
	}
	defer rows.Close()

	caps := []Capability{}
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		caps = append(caps, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}
	return caps, nil
}

// GetCapability retrieves a capability by id.
func (r *SQLiteCatalogRepository) GetCapability(ctx context.Context, id int64) (*Capability, error) {
	return scanCapability(r.db.QueryRowContext(ctx, "SELECT "+capabilityColumns+" FROM capabilities WHERE id = ?", id))
}

// CreateCapability inserts a capability and sets its ID. The parent, if
// any, must already exist.
func (r *SQLiteCatalogRepository) CreateCapability(ctx context.Context, c *Capability) error {
	now := formatTime(time.Now())
	c.CreatedAt = parseTime(now)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO capabilities (module_id, name, ref_code, parent_id, is_visible, description,
		 created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ModuleID, c.Name, c.RefCode, nullID(c.ParentID), boolToInt(c.IsVisible),
		nullString(c.Description), c.CreatedBy, now,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrCapabilityExists
		case isForeignKeyViolation(err):
			return ErrCapabilityNotFound
		}
		return fmt.Errorf("creating capability: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading capability id: %w", err)
	}
	c.ID = id
	return nil
}

// GrantedCapabilityIDs returns the ids of the capabilities granted to a role.
func (r *SQLiteCatalogRepository) GrantedCapabilityIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT capability_id FROM role_capabilities WHERE role_id = ? ORDER BY capability_id ASC", roleID)
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}
	return ids, nil
}

// HasGrant reports whether the role holds the capability with refCode.
// Visibility is not considered.
func (r *SQLiteCatalogRepository) HasGrant(ctx context.Context, roleID int64, refCode string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM role_capabilities rc
		 JOIN capabilities c ON c.id = rc.capability_id
		 WHERE rc.role_id = ? AND c.ref_code = ?`, roleID, refCode,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking grant: %w", err)
	}
	return n > 0, nil
}

// ReplaceGrants atomically replaces all grants of a role with the given
// capability ids and returns their reference codes. Every id must exist;
// otherwise nothing changes and ErrCapabilityNotFound is returned.
func (r *SQLiteCatalogRepository) ReplaceGrants(ctx context.Context, roleID int64, capabilityIDs []int64, actorID string, now time.Time) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning grant transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	refs := []string{}
	if len(capabilityIDs) > 0 {
		rows, err := tx.QueryContext(ctx,
			"SELECT ref_code FROM capabilities WHERE id IN ("+placeholders(len(capabilityIDs))+") ORDER BY id ASC",
			int64Args(capabilityIDs)...)
		if err != nil {
			return nil, fmt.Errorf("resolving capabilities: %w", err)
		}
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning capability: %w", err)
			}
			refs = append(refs, ref)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating capabilities: %w", err)
		}
		rows.Close()
		if len(refs) != len(capabilityIDs) {
			return nil, ErrCapabilityNotFound
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_capabilities WHERE role_id = ?", roleID); err != nil {
		return nil, fmt.Errorf("clearing grants: %w", err)
	}

	ts := formatTime(now)
	for _, id := range capabilityIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO role_capabilities (role_id, capability_id, created_by, created_at) VALUES (?, ?, ?, ?)",
			roleID, id, actorID, ts)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, ErrCapabilityNotFound
			}
			return nil, fmt.Errorf("granting capability %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing grants: %w", err)
	}
	return refs, nil
}

func scanModule(s scanner) (*Module, error) {
	var m Module
	var parentID sql.NullInt64
	var isVisible int
	var createdAt string
	var logo, redirect, description, updatedBy, updatedAt sql.NullString

	err := s.Scan(&m.ID, &m.Name, &m.RefCode, &parentID, &m.SortOrder, &logo, &redirect,
		&isVisible, &description, &m.CreatedBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("scanning module: %w", err)
	}

	m.ParentID = idPtr(parentID)
	m.LogoName = logo.String
	m.RedirectPage = redirect.String
	m.IsVisible = isVisible != 0
	m.Description = description.String
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedBy = updatedBy.String
	m.UpdatedAt = parseNullTime(updatedAt)
	return &m, nil
}

func scanCapability(s scanner) (*Capability, error) {
	var c Capability
	var parentID sql.NullInt64
	var isVisible int
	var createdAt string
	var description, updatedBy, updatedAt sql.NullString

	err := s.Scan(&c.ID, &c.ModuleID, &c.Name, &c.RefCode, &parentID, &isVisible, &description,
		&c.CreatedBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCapabilityNotFound
		}
		return nil, fmt.Errorf("scanning capability: %w", err)
	}

	c.ParentID = idPtr(parentID)
	c.IsVisible = isVisible != 0
	c.Description = description.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedBy = updatedBy.String
	c.UpdatedAt = parseNullTime(updatedAt)
	return &c, nil
}
