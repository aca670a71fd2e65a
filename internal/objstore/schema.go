// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package objstore

import (
	"database/sql"
	"fmt"
)

// ddlStatements creates the catalogue schema: one row per configured
// backup, one row per content-addressed backup object (multiple versions
// of the same (backup, media) can coexist until the retention pruner
// catches up), a log of per-file errors, and the scheduler's persisted
// cursor state. The three indexes are load-bearing: idx_backup_objects_backup_media
// backs the dedupe existence check and the pruning primitive,
// idx_backup_objects_backup_modified backs the scheduler's incremental
// cursor, and
// idx_backup_objects_library backs the per-library catalogue listings.
var ddlStatements = []string{
	`CREATE TABLE IF NOT EXISTS backups (
		id          VARCHAR PRIMARY KEY,
		name        VARCHAR NOT NULL,
		source      VARCHAR NOT NULL,
		plugin      VARCHAR,
		credentials VARCHAR,
		library     VARCHAR,
		path        VARCHAR NOT NULL,
		schedule    VARCHAR,
		filter      VARCHAR,
		last        BIGINT,
		password    VARCHAR,
		size        BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS backup_objects (
		id          VARCHAR PRIMARY KEY,
		backup      VARCHAR NOT NULL,
		library     VARCHAR,
		media       VARCHAR NOT NULL,
		path        VARCHAR NOT NULL,
		hash        VARCHAR,
		sourcehash  VARCHAR NOT NULL,
		size        BIGINT NOT NULL,
		modified    BIGINT NOT NULL,
		added       BIGINT NOT NULL,
		iv          VARCHAR,
		thumb_size  BIGINT,
		info_size   BIGINT,
		error       VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backup_objects_backup_media
		ON backup_objects (backup, media)`,
	`CREATE INDEX IF NOT EXISTS idx_backup_objects_backup_modified
		ON backup_objects (backup, modified, id)`,
	`CREATE INDEX IF NOT EXISTS idx_backup_objects_library
		ON backup_objects (library, media)`,
	`CREATE TABLE IF NOT EXISTS backup_errors (
		backup   VARCHAR NOT NULL,
		library  VARCHAR,
		media    VARCHAR NOT NULL,
		time     TIMESTAMP NOT NULL,
		message  VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_state (
		backup        VARCHAR PRIMARY KEY,
		last_scheduled   BIGINT,
		next_scheduled   BIGINT,
		is_processing    BOOLEAN NOT NULL DEFAULT false
	)`,
}

// Migrate applies the catalogue schema. Idempotent: safe to call on every
// process start.
func Migrate(db *sql.DB) error {
	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
