package store

import (
	"context"
	"fmt"
)

// Engine names accepted by OpenEngine.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// OpenEngine opens and migrates the configured engine. sqlitePath is used by
// the sqlite engine, databaseURL by postgres.
func OpenEngine(ctx context.Context, engine, sqlitePath, databaseURL string) (Store, *MigrateResult, error) {
	switch engine {
	case EngineSQLite, "":
		db, err := Open(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		res, err := db.Migrate()
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return db, res, nil
	case EnginePostgres:
		pg, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		res, err := pg.Migrate()
		if err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, res, nil
	default:
		return nil, nil, fmt.Errorf("unknown store engine %q", engine)
	}
}
