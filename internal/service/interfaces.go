// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/meterflow/meterflow/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Unit catalog operations
	CreateUnit(ctx context.Context, unit *model.Unit) (*model.Unit, error)
	GetUnitByID(ctx context.Context, id model.UnitID) (*model.Unit, error)
	GetUnitBySymbol(ctx context.Context, symbol string) (*model.Unit, error)
	ListUnits(ctx context.Context) ([]model.Unit, error)
	ListUnitsByKind(ctx context.Context, kind model.UnitKind) ([]model.Unit, error)

	// Meter operations
	CreateMeter(ctx context.Context, meter *model.Meter) (*model.Meter, error)
	GetMeterByID(ctx context.Context, id model.MeterID) (*model.Meter, error)
	ListMeters(ctx context.Context) ([]model.Meter, error)
	ListMetersByGroup(ctx context.Context, groupID model.GroupID) ([]model.Meter, error)
	AssignMeterUnit(ctx context.Context, id model.MeterID, unitID model.UnitID) error
	MoveMeterToGroup(ctx context.Context, id model.MeterID, groupID model.GroupID) error

	// Group operations
	CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error)
	GetGroupByID(ctx context.Context, id model.GroupID) (*model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	ListChildGroups(ctx context.Context, parentID model.GroupID) ([]model.Group, error)
	SetGroupDefaultUnit(ctx context.Context, id model.GroupID, unitID model.UnitID) error
	MoveGroupToParent(ctx context.Context, id model.GroupID, parentID model.GroupID) error
	DeepMeterIDs(ctx context.Context, groupID model.GroupID) ([]model.MeterID, error)
	AncestorGroupIDs(ctx context.Context, groupID model.GroupID) ([]model.GroupID, error)

	// Relation cache operations
	SaveRelationRecord(ctx context.Context, record *RelationRecord) error
	LoadRelationRecord(ctx context.Context) (*RelationRecord, error)
	RelationUnitDrift(ctx context.Context) ([]model.Unit, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RelationSnapshot is one immutable, fully loaded compatibility relation:
// a boolean matrix between source-unit rows and graphic-unit columns with
// bidirectional id↔index lookups.
type RelationSnapshot interface {
	SourceCount() int
	TargetCount() int
	Compatible(row, col int) bool
	RowOf(id model.UnitID) (int, bool)
	ColOf(id model.UnitID) (int, bool)
	UnitAtRow(row int) (model.UnitID, bool)
	UnitAtCol(col int) (model.UnitID, bool)
}

// RelationSource supplies the current relation snapshot. Callers must take
// one Snapshot per pass; a source that is not Ready returns nil and every
// query against it degrades to the empty set, never an error.
type RelationSource interface {
	Ready() bool
	Snapshot() RelationSnapshot
}

// RelationRecord is the storable flat form of a loaded relation snapshot.
type RelationRecord struct {
	GeneratedAt time.Time
	Version     string
	Sources     []RelationAxisUnit
	Targets     []RelationAxisUnit
	Cells       []RelationCell
}

// RelationAxisUnit binds a unit id to its row or column index.
type RelationAxisUnit struct {
	UnitID model.UnitID
	Index  int
}

// RelationCell marks one true cell of the relation matrix.
type RelationCell struct {
	Row int
	Col int
}

// AuditReport summarizes unit-compatibility health across all groups.
type AuditReport struct {
	GeneratedAt   time.Time
	Rows          []AuditRow
	Drift         []model.Unit
	RelationReady bool
}

// AuditRow is the per-group line of the audit report.
type AuditRow struct {
	GroupName       string
	DefaultUnit     string
	GroupID         model.GroupID
	DeepMeterCount  int
	CompatibleCount int
	DefaultUnitOK   bool
}

// ReportWriter exports an audit report to an external destination.
type ReportWriter interface {
	Write(ctx context.Context, report *AuditReport) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
