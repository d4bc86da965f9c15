package store

import (
	"context"

	"github.com/wsio/wsio/internal/database"
)

// postgresDDL creates the metadata tables on PostgreSQL.
var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		created       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id          UUID PRIMARY KEY,
		key_id      TEXT NOT NULL UNIQUE,
		secret_hash TEXT NOT NULL,
		user_id     UUID NOT NULL REFERENCES users(id),
		created     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS storage_nodes (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL UNIQUE,
		kind            TEXT NOT NULL,
		endpoint        TEXT NOT NULL,
		access_key      TEXT NOT NULL,
		secret_key      TEXT NOT NULL,
		region          TEXT NOT NULL DEFAULT 'us-east-1',
		sts_endpoint    TEXT NOT NULL DEFAULT '',
		assume_role_arn TEXT NOT NULL DEFAULT '',
		creator_id      UUID NOT NULL,
		created         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workspace_roots (
		id        UUID PRIMARY KEY,
		node_id   UUID NOT NULL REFERENCES storage_nodes(id),
		root_type TEXT NOT NULL,
		bucket    TEXT NOT NULL,
		base_path TEXT NOT NULL DEFAULT '',
		created   TIMESTAMPTZ NOT NULL,
		UNIQUE (node_id, bucket, base_path)
	)`,
	`CREATE TABLE IF NOT EXISTS workspaces (
		id        UUID PRIMARY KEY,
		name      TEXT NOT NULL,
		owner_id  UUID NOT NULL REFERENCES users(id),
		root_id   UUID NOT NULL REFERENCES workspace_roots(id),
		base_path TEXT NOT NULL DEFAULT '',
		created   TIMESTAMPTZ NOT NULL,
		UNIQUE (name, owner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS shares (
		id           UUID PRIMARY KEY,
		workspace_id UUID NOT NULL REFERENCES workspaces(id),
		creator_id   UUID NOT NULL REFERENCES users(id),
		sharee_id    UUID NOT NULL REFERENCES users(id),
		permission   TEXT NOT NULL,
		expiration   TIMESTAMPTZ,
		created      TIMESTAMPTZ NOT NULL,
		UNIQUE (workspace_id, creator_id, sharee_id)
	)`,
}

// mysqlDDL creates the metadata tables on MySQL. UUIDs are stored as
// CHAR(36) strings so both dialects scan into the same Go types.
var mysqlDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36) PRIMARY KEY,
		username      VARCHAR(255) NOT NULL UNIQUE,
		email         VARCHAR(255) UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created       DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id          CHAR(36) PRIMARY KEY,
		key_id      VARCHAR(255) NOT NULL UNIQUE,
		secret_hash VARCHAR(255) NOT NULL,
		user_id     CHAR(36) NOT NULL,
		created     DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS storage_nodes (
		id              CHAR(36) PRIMARY KEY,
		name            VARCHAR(255) NOT NULL UNIQUE,
		kind            VARCHAR(16) NOT NULL,
		endpoint        VARCHAR(1024) NOT NULL,
		access_key      VARCHAR(255) NOT NULL,
		secret_key      VARCHAR(255) NOT NULL,
		region          VARCHAR(64) NOT NULL DEFAULT 'us-east-1',
		sts_endpoint    VARCHAR(1024) NOT NULL DEFAULT '',
		assume_role_arn VARCHAR(1024) NOT NULL DEFAULT '',
		creator_id      CHAR(36) NOT NULL,
		created         DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workspace_roots (
		id        CHAR(36) PRIMARY KEY,
		node_id   CHAR(36) NOT NULL,
		root_type VARCHAR(16) NOT NULL,
		bucket    VARCHAR(255) NOT NULL,
		base_path VARCHAR(1024) NOT NULL DEFAULT '',
		created   DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_root (node_id, bucket, base_path(255))
	)`,
	`CREATE TABLE IF NOT EXISTS workspaces (
		id        CHAR(36) PRIMARY KEY,
		name      VARCHAR(255) NOT NULL,
		owner_id  CHAR(36) NOT NULL,
		root_id   CHAR(36) NOT NULL,
		base_path VARCHAR(1024) NOT NULL DEFAULT '',
		created   DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_workspace (name, owner_id)
	)`,
	`CREATE TABLE IF NOT EXISTS shares (
		id           CHAR(36) PRIMARY KEY,
		workspace_id CHAR(36) NOT NULL,
		creator_id   CHAR(36) NOT NULL,
		sharee_id    CHAR(36) NOT NULL,
		permission   VARCHAR(16) NOT NULL,
		expiration   DATETIME(6),
		created      DATETIME(6) NOT NULL,
		UNIQUE KEY uniq_share (workspace_id, creator_id, sharee_id)
	)`,
}

// EnsureSchema creates any missing metadata tables for the driver's dialect.
// Statements are idempotent; it is safe to call on every startup.
func EnsureSchema(ctx context.Context, db database.DB) error {
	ddl := postgresDDL
	if db.Dialect() == database.DialectMySQL {
		ddl = mysqlDDL
	}
	for _, stmt := range ddl {
		if err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
