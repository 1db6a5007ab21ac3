// Package postgres implements the storage interfaces on PostgreSQL. It backs
// the fleet mirror: kiosks push their datasets here so a new kiosk can boot
// with the museum's reference set, and the per-example vectors are kept in a
// pgvector column for server-side inspection.
package postgres

// Schema creates the base tables. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS datasets (
    tenant_id  TEXT PRIMARY KEY,
    model      TEXT NOT NULL DEFAULT '',
    dimension  INTEGER NOT NULL,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entities (
    tenant_id    TEXT NOT NULL,
    id           TEXT NOT NULL,
    display_name TEXT NOT NULL,
    description  TEXT,
    image_url    TEXT,
    position     INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS entity_fetches (
    tenant_id  TEXT PRIMARY KEY,
    fetched_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// MigrationPgvector adds the per-example vector table. Only applied when the
// vector extension is available.
const MigrationPgvector = `
CREATE TABLE IF NOT EXISTS reference_examples (
    tenant_id TEXT NOT NULL REFERENCES datasets(tenant_id) ON DELETE CASCADE,
    label     TEXT NOT NULL,
    position  INTEGER NOT NULL,
    embedding vector NOT NULL,
    PRIMARY KEY (tenant_id, label, position)
);
`
