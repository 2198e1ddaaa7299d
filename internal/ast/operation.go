package ast

import (
	"strings"
)

// OpType represents the type of a schema operation.
type OpType int

const (
	// OpCreateTable creates a new table with its columns and constraints.
	OpCreateTable OpType = iota

	// OpDropTable removes an existing table.
	OpDropTable

	// OpAddColumn adds a new column to an existing table.
	OpAddColumn

	// OpDropColumn removes a column from an existing table.
	OpDropColumn

	// OpAlterColumn changes a column's type, nullability, default or constraints.
	OpAlterColumn
)

// String returns the string representation of an OpType.
func (o OpType) String() string {
	switch o {
	case OpCreateTable:
		return "CreateTable"
	case OpDropTable:
		return "DropTable"
	case OpAddColumn:
		return "AddColumn"
	case OpDropColumn:
		return "DropColumn"
	case OpAlterColumn:
		return "AlterColumn"
	default:
		return "Unknown"
	}
}

// Operation is one schema change that a dialect can render to SQL.
type Operation interface {
	Type() OpType
	Table() string
}

// CreateTable creates Def with all of its columns and foreign keys.
type CreateTable struct {
	Def         *TableDef
	IfNotExists bool
}

func (op *CreateTable) Type() OpType  { return OpCreateTable }
func (op *CreateTable) Table() string { return op.Def.Name }

// DropTable drops a table.
type DropTable struct {
	Name     string
	IfExists bool
}

func (op *DropTable) Type() OpType  { return OpDropTable }
func (op *DropTable) Table() string { return op.Name }

// AddColumn adds Column to an existing table.
type AddColumn struct {
	TableName string
	Column    *ColumnDef
}

func (op *AddColumn) Type() OpType  { return OpAddColumn }
func (op *AddColumn) Table() string { return op.TableName }

// DropColumn removes a column.
type DropColumn struct {
	TableName string
	Name      string
}

func (op *DropColumn) Type() OpType  { return OpDropColumn }
func (op *DropColumn) Table() string { return op.TableName }

// AlterColumn moves a column from its runtime shape (From) to its declared
// shape (To). Changes says which aspects differ.
type AlterColumn struct {
	TableName string
	From      *ColumnDef
	To        *ColumnDef
	Changes   ColumnChanges
}

func (op *AlterColumn) Type() OpType  { return OpAlterColumn }
func (op *AlterColumn) Table() string { return op.TableName }

// ColumnChanges flags the aspects of a column that differ between two schemas.
type ColumnChanges struct {
	Type      bool
	Nullable  bool
	Default   bool
	Unique    bool
	Reference bool
}

// Any reports whether at least one aspect changed.
func (c ColumnChanges) Any() bool {
	return c.Type || c.Nullable || c.Default || c.Unique || c.Reference
}

// String lists the changed aspects, e.g. "type, nullable".
func (c ColumnChanges) String() string {
	var parts []string
	if c.Type {
		parts = append(parts, "type")
	}
	if c.Nullable {
		parts = append(parts, "nullable")
	}
	if c.Default {
		parts = append(parts, "default")
	}
	if c.Unique {
		parts = append(parts, "unique")
	}
	if c.Reference {
		parts = append(parts, "reference")
	}
	return strings.Join(parts, ", ")
}
