package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
)

// maxGroupDepth caps the recursive hierarchy walks so a corrupted parent
// chain cannot spin the query forever.
const maxGroupDepth = 64

// CreateGroup adds a group. A zero ParentID makes it a root group.
func (s *SQLiteStorage) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	return createGroup(ctx, s.db, group)
}

// GetGroupByID returns a group by its id.
func (s *SQLiteStorage) GetGroupByID(ctx context.Context, id model.GroupID) (*model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getGroupByID(ctx, s.db, id)
}

// ListGroups returns all groups ordered by name.
func (s *SQLiteStorage) ListGroups(ctx context.Context) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listGroups(ctx, s.db)
}

// ListChildGroups returns the direct subgroups of a parent; the root
// sentinel lists the top-level groups.
func (s *SQLiteStorage) ListChildGroups(ctx context.Context, parentID model.GroupID) ([]model.Group, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listChildGroups(ctx, s.db, parentID)
}

// SetGroupDefaultUnit sets the group's default graphic unit; the sentinel
// clears it.
func (s *SQLiteStorage) SetGroupDefaultUnit(ctx context.Context, id model.GroupID, unitID model.UnitID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return setGroupDefaultUnit(ctx, s.db, id, unitID)
}

// MoveGroupToParent reattaches the group under a new parent; the root
// sentinel detaches it to the top level.
func (s *SQLiteStorage) MoveGroupToParent(ctx context.Context, id model.GroupID, parentID model.GroupID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return moveGroupToParent(ctx, s.db, id, parentID)
}

// DeepMeterIDs returns the ids of every meter in the group or any of its
// transitive subgroups, ordered by id.
func (s *SQLiteStorage) DeepMeterIDs(ctx context.Context, groupID model.GroupID) ([]model.MeterID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return deepMeterIDs(ctx, s.db, groupID)
}

// AncestorGroupIDs returns the group's ancestors nearest-first, excluding
// the group itself.
func (s *SQLiteStorage) AncestorGroupIDs(ctx context.Context, groupID model.GroupID) ([]model.GroupID, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return ancestorGroupIDs(ctx, s.db, groupID)
}

func createGroup(ctx context.Context, q dbtx, group *model.Group) (*model.Group, error) {
	existingQuery := `
		SELECT id FROM groups
		WHERE name = ?`

	var existingID model.GroupID
	err := q.QueryRowContext(ctx, existingQuery, group.Name).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: group %q already exists as %d", common.ErrDuplicateEntry, group.Name, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing group: %w", err)
	}

	if group.ParentID != model.RootGroup {
		if _, err := getGroupByID(ctx, q, group.ParentID); err != nil {
			return nil, err
		}
	}
	if group.DefaultUnitID != model.NoUnit {
		if err := checkGraphicUnit(ctx, q, group.DefaultUnitID); err != nil {
			return nil, err
		}
	}

	insertQuery := `
		INSERT INTO groups (name, parent_id, default_unit_id, created_at)
		VALUES (?, ?, ?, ?)`

	now := time.Now()
	result, err := q.ExecContext(ctx, insertQuery, group.Name, group.ParentID, group.DefaultUnitID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get group ID: %w", err)
	}

	created := *group
	created.ID = model.GroupID(id)
	created.CreatedAt = now

	slog.Info("created group",
		"id", created.ID,
		"name", created.Name,
		"parent_id", created.ParentID)
	return &created, nil
}

func getGroupByID(ctx context.Context, q dbtx, id model.GroupID) (*model.Group, error) {
	query := `
		SELECT id, name, parent_id, default_unit_id, created_at
		FROM groups
		WHERE id = ?`

	var group model.Group
	err := q.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.ParentID, &group.DefaultUnitID, &group.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", common.ErrGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query group: %w", err)
	}

	return &group, nil
}

func listGroups(ctx context.Context, q dbtx) ([]model.Group, error) {
	query := `
		SELECT id, name, parent_id, default_unit_id, created_at
		FROM groups
		ORDER BY name`

	return scanGroups(ctx, q, query)
}

func listChildGroups(ctx context.Context, q dbtx, parentID model.GroupID) ([]model.Group, error) {
	query := `
		SELECT id, name, parent_id, default_unit_id, created_at
		FROM groups
		WHERE parent_id = ?
		ORDER BY name`

	return scanGroups(ctx, q, query, parentID)
}

func scanGroups(ctx context.Context, q dbtx, query string, args ...any) ([]model.Group, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var group model.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.ParentID, &group.DefaultUnitID, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return groups, nil
}

func setGroupDefaultUnit(ctx context.Context, q dbtx, id model.GroupID, unitID model.UnitID) error {
	if _, err := getGroupByID(ctx, q, id); err != nil {
		return err
	}
	if unitID != model.NoUnit {
		if err := checkGraphicUnit(ctx, q, unitID); err != nil {
			return err
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE groups SET default_unit_id = ? WHERE id = ?`, unitID, id); err != nil {
		return fmt.Errorf("failed to set group default unit: %w", err)
	}

	slog.Info("set group default unit", "group_id", id, "unit_id", unitID)
	return nil
}

func moveGroupToParent(ctx context.Context, q dbtx, id model.GroupID, parentID model.GroupID) error {
	if _, err := getGroupByID(ctx, q, id); err != nil {
		return err
	}
	if parentID != model.RootGroup {
		if _, err := getGroupByID(ctx, q, parentID); err != nil {
			return err
		}
		if parentID == id {
			return fmt.Errorf("%w: group %d cannot contain itself", common.ErrHierarchyCycle, id)
		}

		// The new parent must not sit inside the group's own subtree.
		ancestors, err := ancestorGroupIDs(ctx, q, parentID)
		if err != nil {
			return err
		}
		for _, ancestor := range ancestors {
			if ancestor == id {
				return fmt.Errorf("%w: group %d contains group %d", common.ErrHierarchyCycle, id, parentID)
			}
		}
	}

	if _, err := q.ExecContext(ctx, `UPDATE groups SET parent_id = ? WHERE id = ?`, parentID, id); err != nil {
		return fmt.Errorf("failed to move group: %w", err)
	}

	slog.Info("moved group", "group_id", id, "parent_id", parentID)
	return nil
}

func deepMeterIDs(ctx context.Context, q dbtx, groupID model.GroupID) ([]model.MeterID, error) {
	if _, err := getGroupByID(ctx, q, groupID); err != nil {
		return nil, err
	}

	query := `
		WITH RECURSIVE subgroups(id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT g.id, sg.depth + 1
			FROM groups g
			JOIN subgroups sg ON g.parent_id = sg.id
			WHERE sg.depth < ?
		)
		SELECT m.id
		FROM meters m
		JOIN subgroups sg ON m.group_id = sg.id
		ORDER BY m.id`

	rows, err := q.QueryContext(ctx, query, groupID, maxGroupDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to query deep meters: %w", err)
	}
	defer rows.Close()

	var ids []model.MeterID
	for rows.Next() {
		var id model.MeterID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan meter id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deep meters: %w", err)
	}

	slog.Debug("resolved deep meters", "group_id", groupID, "count", len(ids))
	return ids, nil
}

func ancestorGroupIDs(ctx context.Context, q dbtx, groupID model.GroupID) ([]model.GroupID, error) {
	if _, err := getGroupByID(ctx, q, groupID); err != nil {
		return nil, err
	}

	query := `
		WITH RECURSIVE chain(id, parent_id, depth) AS (
			SELECT id, parent_id, 0
			FROM groups
			WHERE id = ?
			UNION ALL
			SELECT g.id, g.parent_id, c.depth + 1
			FROM groups g
			JOIN chain c ON g.id = c.parent_id
			WHERE c.depth < ?
		)
		SELECT id
		FROM chain
		WHERE depth > 0
		ORDER BY depth`

	rows, err := q.QueryContext(ctx, query, groupID, maxGroupDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to query ancestors: %w", err)
	}
	defer rows.Close()

	var ids []model.GroupID
	for rows.Next() {
		var id model.GroupID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ancestors: %w", err)
	}

	return ids, nil
}

// checkGraphicUnit verifies the unit exists and is a graphic unit.
func checkGraphicUnit(ctx context.Context, q dbtx, unitID model.UnitID) error {
	unit, err := getUnitByID(ctx, q, unitID)
	if err != nil {
		return err
	}
	if unit.IsSource() {
		return fmt.Errorf("%w: unit %q is %s-kind, defaults need a graphic unit", ErrInvalidGroup, unit.Name, unit.Kind)
	}
	return nil
}
