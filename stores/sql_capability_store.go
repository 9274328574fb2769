package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	eventguard "github.com/sbnctech/murmurant-eventguard"
)

// SQLCapabilityStore persists role→capability grants, one row per role
// with the capabilities as a JSON array column. It satisfies
// eventguard.CapabilityStore.
type SQLCapabilityStore struct {
	db *squealx.DB
}

func NewSQLCapabilityStore(db *squealx.DB) *SQLCapabilityStore {
	return &SQLCapabilityStore{db: db}
}

func (s *SQLCapabilityStore) Grant(ctx context.Context, role string, caps ...eventguard.Capability) error {
	current, err := s.Capabilities(ctx, role)
	if err != nil {
		return err
	}
	for _, c := range caps {
		current = current.Add(c)
	}
	q := `INSERT OR REPLACE INTO role_capabilities(role, capabilities_json, updated_at) VALUES(:role, :capabilities_json, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"role":              role,
		"capabilities_json": capsToJSON(current),
		"updated_at":        time.Now(),
	})
	return err
}

func (s *SQLCapabilityStore) Revoke(ctx context.Context, role string, caps ...eventguard.Capability) error {
	current, err := s.Capabilities(ctx, role)
	if err != nil {
		return err
	}
	for _, c := range caps {
		delete(current, c)
	}
	q := `INSERT OR REPLACE INTO role_capabilities(role, capabilities_json, updated_at) VALUES(:role, :capabilities_json, :updated_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"role":              role,
		"capabilities_json": capsToJSON(current),
		"updated_at":        time.Now(),
	})
	return err
}

// Capabilities returns the role's grants. Unknown roles come back as the
// empty set, not an error: a role nobody granted anything is a valid role
// with no capabilities.
func (s *SQLCapabilityStore) Capabilities(ctx context.Context, role string) (eventguard.CapabilitySet, error) {
	q := `SELECT capabilities_json FROM role_capabilities WHERE role = :role`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role": role})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return eventguard.CapabilitySet{}, nil
	}
	var capsJSON string
	if err := r.Scan(&capsJSON); err != nil {
		return nil, err
	}
	return capsFromJSON(capsJSON), nil
}

func (s *SQLCapabilityStore) Roles(ctx context.Context) ([]string, error) {
	q := `SELECT role FROM role_capabilities ORDER BY role`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var role string
		if err := r.Scan(&role); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
