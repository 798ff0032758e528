// Package database opens the SQLite file that holds the gateway's event
// journal and applies its schema migrations.
//
// The journal is an audit trail of transitions and issued commands. It is
// never read back into device state.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied in version order.
package database
