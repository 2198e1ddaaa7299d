package introspect

import (
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
)

func unknownType(native string) ast.Type {
	return ast.Type{Kind: ast.KindUnknown, Raw: strings.TrimSpace(native)}
}

// withEnum attaches recovered enum values to varchar and text columns.
// An enum over TEXT is reported as a varchar of unknown length.
func withEnum(t ast.Type, enum []string) ast.Type {
	if len(enum) == 0 {
		return t
	}
	switch t.Kind {
	case ast.KindVarchar:
		t.Enum = enum
	case ast.KindText:
		t = ast.Type{Kind: ast.KindVarchar, Enum: enum}
	}
	return t
}

// MapPostgresType converts an information_schema data_type to a logical type.
func MapPostgresType(col ColumnInfo) ast.Type {
	upper := strings.ToUpper(strings.TrimSpace(col.NativeType))

	var t ast.Type
	switch upper {
	case "UUID":
		t = ast.Type{Kind: ast.KindUUID}
	case "CHARACTER VARYING", "VARCHAR":
		if col.Length <= 0 {
			// varchar without a limit behaves like text
			t = ast.Type{Kind: ast.KindText}
		} else {
			t = ast.Type{Kind: ast.KindVarchar, Length: col.Length}
		}
	case "TEXT":
		t = ast.Type{Kind: ast.KindText}
	case "INTEGER", "INT", "INT4", "SMALLINT", "INT2", "BIGINT", "INT8":
		t = ast.Type{Kind: ast.KindInteger}
	case "NUMERIC", "DECIMAL":
		if col.Precision <= 0 {
			return unknownType(col.NativeType)
		}
		t = ast.Type{Kind: ast.KindNumeric, Precision: col.Precision, Scale: col.Scale}
	case "BOOLEAN", "BOOL":
		t = ast.Type{Kind: ast.KindBoolean}
	case "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ", "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE":
		t = ast.Type{Kind: ast.KindTimestamp}
	default:
		return unknownType(col.NativeType)
	}
	return withEnum(t, col.Enum)
}

// MapSQLiteType converts a declared SQLite column type to a logical type.
// SQLite keeps declared type names verbatim, so this is the inverse of the
// sqlite dialect's type mapping.
func MapSQLiteType(col ColumnInfo) ast.Type {
	base, args, ok := splitNativeType(col.NativeType)
	if !ok {
		return unknownType(col.NativeType)
	}

	var t ast.Type
	switch base {
	case "TEXT", "CLOB":
		t = ast.Type{Kind: ast.KindText}
	case "VARCHAR", "CHARACTER VARYING", "NVARCHAR":
		if len(args) == 0 {
			t = ast.Type{Kind: ast.KindText}
		} else {
			t = ast.Type{Kind: ast.KindVarchar, Length: args[0]}
		}
	case "INTEGER", "INT", "SMALLINT", "BIGINT":
		t = ast.Type{Kind: ast.KindInteger}
	case "NUMERIC", "DECIMAL":
		if len(args) == 0 {
			return unknownType(col.NativeType)
		}
		t = ast.Type{Kind: ast.KindNumeric, Precision: args[0]}
		if len(args) > 1 {
			t.Scale = args[1]
		}
	case "UUID":
		t = ast.Type{Kind: ast.KindUUID}
	case "TIMESTAMP", "DATETIME", "TIMESTAMPTZ":
		t = ast.Type{Kind: ast.KindTimestamp}
	case "BOOLEAN", "BOOL":
		t = ast.Type{Kind: ast.KindBoolean}
	default:
		return unknownType(col.NativeType)
	}
	return withEnum(t, col.Enum)
}

// MapMySQLType converts an information_schema column_type to a logical type.
// tinyint(1) is boolean and char(36) is uuid, matching the mysql dialect.
func MapMySQLType(col ColumnInfo) ast.Type {
	native := strings.TrimSpace(col.NativeType)
	if strings.HasPrefix(strings.ToLower(native), "enum(") {
		values := col.Enum
		if len(values) == 0 {
			values = parseQuotedLiterals(native)
		}
		// ENUM carries no length; Type.Equal treats zero as any length.
		return ast.Type{Kind: ast.KindVarchar, Enum: values}
	}

	base, args, ok := splitNativeType(native)
	if !ok {
		return unknownType(native)
	}

	switch base {
	case "TINYINT":
		if len(args) == 1 && args[0] == 1 {
			return ast.Type{Kind: ast.KindBoolean}
		}
		return unknownType(native)
	case "BOOL", "BOOLEAN":
		return ast.Type{Kind: ast.KindBoolean}
	case "CHAR":
		if len(args) == 1 && args[0] == 36 {
			return ast.Type{Kind: ast.KindUUID}
		}
		return unknownType(native)
	case "INT", "INTEGER", "SMALLINT", "MEDIUMINT", "BIGINT":
		return ast.Type{Kind: ast.KindInteger}
	case "DECIMAL", "NUMERIC":
		if len(args) == 0 {
			return unknownType(native)
		}
		t := ast.Type{Kind: ast.KindNumeric, Precision: args[0]}
		if len(args) > 1 {
			t.Scale = args[1]
		}
		return t
	case "VARCHAR":
		if len(args) == 0 {
			return unknownType(native)
		}
		return ast.Type{Kind: ast.KindVarchar, Length: args[0]}
	case "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT":
		return ast.Type{Kind: ast.KindText}
	case "DATETIME", "TIMESTAMP":
		return ast.Type{Kind: ast.KindTimestamp}
	default:
		return unknownType(native)
	}
}
