// Package storage provides the SQLite-backed implementations of the server
// registry and telemetry store for durable deployments. Schema migrations run
// on open; the sample retention rule is enforced on every insert.
package storage

import (
	"database/sql"
	"time"

	"gamedash/internal/models"
	"gamedash/internal/registry"
	"gamedash/internal/telemetry"

	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection. It satisfies both
// registry.Registry and telemetry.Store.
type Repository struct {
	db *sql.DB
}

var (
	_ registry.Registry = (*Repository)(nil)
	_ telemetry.Store   = (*Repository)(nil)
)

// New initializes a new SQLite connection, sets connection pool parameters,
// and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const serverColumns = `id, external_id, owner_id, name, description, node, game_type,
	power_state, host, port, limit_memory_mb, limit_disk_mb, limit_cpu_percent, created_at`

func scanServer(row interface{ Scan(...any) error }) (*models.ServerRecord, error) {
	var rec models.ServerRecord
	var state string
	err := row.Scan(
		&rec.ID, &rec.ExternalID, &rec.OwnerID, &rec.Name, &rec.Description,
		&rec.Node, &rec.GameType, &state, &rec.Host, &rec.Port,
		&rec.LimitMemoryMB, &rec.LimitDiskMB, &rec.LimitCPUPercent, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.PowerState = models.PowerState(state)
	return &rec, nil
}

// Upsert creates a record for an unseen external id or overwrites the
// orchestrator-sourced fields of the existing one inside a transaction.
func (r *Repository) Upsert(ownerID int64, remote models.RemoteServer) (*models.ServerRecord, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existingOwner int64
	err = tx.QueryRow("SELECT owner_id FROM servers WHERE external_id = ?", remote.Identifier).Scan(&existingOwner)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO servers (
				external_id, owner_id, name, description, node, game_type,
				power_state, host, port, limit_memory_mb, limit_disk_mb, limit_cpu_percent, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			remote.Identifier, ownerID, remote.Name, remote.Description, remote.Node, remote.GameType,
			string(models.PowerStateFromStatus(remote.Status)), remote.Allocation.Host, remote.Allocation.Port,
			remote.Limits.MemoryMB, remote.Limits.DiskMB, remote.Limits.CPUPercent, time.Now().UTC(),
		)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existingOwner != ownerID:
		return nil, registry.ErrOwnerMismatch
	default:
		_, err = tx.Exec(`
			UPDATE servers SET
				name = ?, description = ?, node = ?, game_type = ?, power_state = ?,
				host = ?, port = ?, limit_memory_mb = ?, limit_disk_mb = ?, limit_cpu_percent = ?
			WHERE external_id = ?`,
			remote.Name, remote.Description, remote.Node, remote.GameType,
			string(models.PowerStateFromStatus(remote.Status)), remote.Allocation.Host, remote.Allocation.Port,
			remote.Limits.MemoryMB, remote.Limits.DiskMB, remote.Limits.CPUPercent,
			remote.Identifier,
		)
		if err != nil {
			return nil, err
		}
	}

	rec, err := scanServer(tx.QueryRow(
		"SELECT "+serverColumns+" FROM servers WHERE external_id = ?", remote.Identifier))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ByInternalID returns the record with the given internal id.
func (r *Repository) ByInternalID(id int64) (*models.ServerRecord, error) {
	rec, err := scanServer(r.db.QueryRow(
		"SELECT "+serverColumns+" FROM servers WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	return rec, err
}

// ByExternalID returns the record with the given orchestrator identifier.
func (r *Repository) ByExternalID(externalID string) (*models.ServerRecord, error) {
	rec, err := scanServer(r.db.QueryRow(
		"SELECT "+serverColumns+" FROM servers WHERE external_id = ?", externalID))
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	return rec, err
}

// ListByOwner returns all records owned by the user, ordered by internal id.
func (r *Repository) ListByOwner(ownerID int64) ([]*models.ServerRecord, error) {
	rows, err := r.db.Query(
		"SELECT "+serverColumns+" FROM servers WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]*models.ServerRecord, 0)
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetPowerState updates a record's power state.
func (r *Repository) SetPowerState(internalID int64, state models.PowerState) (*models.ServerRecord, error) {
	res, err := r.db.Exec("UPDATE servers SET power_state = ? WHERE id = ?", string(state), internalID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, registry.ErrNotFound
	}
	return r.ByInternalID(internalID)
}

// Record appends a usage sample and trims the server's history down to the
// telemetry retention cap, oldest rows first.
func (r *Repository) Record(sample models.UsageSample) (*models.UsageSample, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO usage_samples (server_id, sampled_at, cpu_percent, memory_bytes, disk_bytes, state)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sample.ServerID, sample.SampledAt, sample.CPUPercent, sample.MemoryBytes, sample.DiskBytes, sample.State,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		DELETE FROM usage_samples
		WHERE server_id = ? AND id NOT IN (
			SELECT id FROM usage_samples WHERE server_id = ? ORDER BY id DESC LIMIT ?
		)`,
		sample.ServerID, sample.ServerID, telemetry.HistoryLimit,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sample.Copy(), nil
}

// History returns the retained samples for a server, oldest first.
func (r *Repository) History(serverID int64) ([]*models.UsageSample, error) {
	rows, err := r.db.Query(`
		SELECT server_id, sampled_at, cpu_percent, memory_bytes, disk_bytes, state
		FROM usage_samples WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	samples := make([]*models.UsageSample, 0)
	for rows.Next() {
		var s models.UsageSample
		if err := rows.Scan(&s.ServerID, &s.SampledAt, &s.CPUPercent, &s.MemoryBytes, &s.DiskBytes, &s.State); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}

// Latest returns the most recent sample, or nil when none is recorded.
func (r *Repository) Latest(serverID int64) (*models.UsageSample, error) {
	var s models.UsageSample
	err := r.db.QueryRow(`
		SELECT server_id, sampled_at, cpu_percent, memory_bytes, disk_bytes, state
		FROM usage_samples WHERE server_id = ? ORDER BY id DESC LIMIT 1`, serverID).
		Scan(&s.ServerID, &s.SampledAt, &s.CPUPercent, &s.MemoryBytes, &s.DiskBytes, &s.State)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
