package driver

import (
	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/hlop3z/xpdb/internal/dialect"
)

// Builtin returns a new registry holding the drivers compiled into xpdb:
//
//	postgres  lib/pq             postgres
//	pgx       jackc/pgx/v5       postgres
//	sqlite    modernc.org/sqlite sqlite (embedded)
//	sqlite3   mattn/go-sqlite3   sqlite (embedded, cgo)
//	mysql     go-sql-driver      mysql
func Builtin() *Registry {
	r := NewRegistry()

	r.MustRegister(Descriptor{
		Name:      "postgres",
		SQLDriver: "postgres",
		Capabilities: Capabilities{
			Dialect:          dialect.NamePostgres,
			TransactionalDDL: true,
			Transient:        pqTransient,
		},
	})
	r.MustRegister(Descriptor{
		Name:      "pgx",
		SQLDriver: "pgx",
		Capabilities: Capabilities{
			Dialect:          dialect.NamePostgres,
			TransactionalDDL: true,
			Transient:        pgxTransient,
		},
	})
	r.MustRegister(Descriptor{
		Name:      "sqlite",
		SQLDriver: "sqlite",
		Capabilities: Capabilities{
			Dialect:          dialect.NameSQLite,
			Embedded:         true,
			TransactionalDDL: true,
			Transient:        moderncTransient,
		},
	})
	r.MustRegister(Descriptor{
		Name:      "sqlite3",
		SQLDriver: "sqlite3",
		Capabilities: Capabilities{
			Dialect:          dialect.NameSQLite,
			Embedded:         true,
			TransactionalDDL: true,
			Transient:        mattnTransient,
		},
	})
	r.MustRegister(Descriptor{
		Name:      "mysql",
		SQLDriver: "mysql",
		Capabilities: Capabilities{
			Dialect:   dialect.NameMySQL,
			Transient: mysqlTransient,
		},
	})

	return r
}
