package configlibsql

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Struct is the remote database section of a service config file, for
// deployments that keep the timetable database on a libsql server instead of
// a local file.
type Struct struct {
	Url   string `json:"url"`
	Token string `json:"token"`
}

// OpenDB connects to the configured libsql database and executes the given
// schema. The schema must be idempotent since it runs on every startup.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	if config.Url == "" {
		return nil, fmt.Errorf("a database url was not specified")
	}

	dsn := config.Url
	if config.Token != "" {
		dsn += "?authToken=" + config.Token
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return db, nil
}
