package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
)

// playersTableVersion is bumped when the players schema changes. The
// schema_versions table exists so future migrations can tell what shape
// the data is in; when versions already match this is a no-op.
const playersTableVersion = 1

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations creates the players and schema version tables
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			uuid UUID PRIMARY KEY,
			name TEXT NOT NULL,
			daily BIGINT NOT NULL DEFAULT 0,
			weekly BIGINT NOT NULL DEFAULT 0,
			monthly BIGINT NOT NULL DEFAULT 0,
			yearly BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			exempt BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS schema_versions (
			table_id TEXT PRIMARY KEY,
			version INT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_total ON players(total DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	if err := r.ensureSchemaVersion(ctx, "players", playersTableVersion); err != nil {
		return err
	}

	r.logger.Info("database migrations completed")
	return nil
}

// ensureSchemaVersion records the schema version for a logical table.
func (r *Repository) ensureSchemaVersion(ctx context.Context, tableID string, version int) error {
	var current int
	err := r.pool.QueryRow(ctx,
		`SELECT version FROM schema_versions WHERE table_id = $1`, tableID,
	).Scan(&current)
	if err == nil && current == version {
		return nil
	}
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("reading schema version: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO schema_versions (table_id, version)
		VALUES ($1, $2)
		ON CONFLICT (table_id) DO UPDATE SET version = $2
	`, tableID, version)
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// LoadPlayer retrieves a player's durable row. found is false when the
// player has never been persisted.
func (r *Repository) LoadPlayer(ctx context.Context, id uuid.UUID) (domain.PlayerRow, bool, error) {
	query := `
		SELECT uuid, name, daily, weekly, monthly, yearly, total, exempt, last_updated
		FROM players
		WHERE uuid = $1
	`
	var row domain.PlayerRow
	var lastUpdated int64
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.Name,
		&row.Daily,
		&row.Weekly,
		&row.Monthly,
		&row.Yearly,
		&row.Total,
		&row.Exempt,
		&lastUpdated,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PlayerRow{}, false, nil
		}
		return domain.PlayerRow{}, false, fmt.Errorf("loading player: %w", err)
	}
	row.LastUpdated = time.UnixMilli(lastUpdated)
	return row, true, nil
}

// upsertSQL applies a write only when the incoming watermark is not older
// than the stored one, so a slow save cannot clobber fresher data.
const upsertSQL = `
	INSERT INTO players (uuid, name, daily, weekly, monthly, yearly, total, exempt, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (uuid) DO UPDATE SET
		name = $2,
		daily = $3,
		weekly = $4,
		monthly = $5,
		yearly = $6,
		total = $7,
		exempt = $8,
		last_updated = $9
	WHERE players.last_updated <= $9
`

// UpsertPlayer inserts or updates a player's durable row, guarded by the
// last_updated watermark.
func (r *Repository) UpsertPlayer(ctx context.Context, row domain.PlayerRow) error {
	_, err := r.pool.Exec(ctx, upsertSQL,
		row.ID,
		row.Name,
		row.Daily,
		row.Weekly,
		row.Monthly,
		row.Yearly,
		row.Total,
		row.Exempt,
		row.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// UpsertPlayers saves a batch of rows and reports a per-row outcome. A row
// "fails" either on an execution error or when the watermark guard
// rejected the write; failures are isolated and do not stop the batch.
func (r *Repository) UpsertPlayers(ctx context.Context, rows []domain.PlayerRow) (map[uuid.UUID]bool, error) {
	results := make(map[uuid.UUID]bool, len(rows))
	if len(rows) == 0 {
		return results, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertSQL,
			row.ID,
			row.Name,
			row.Daily,
			row.Weekly,
			row.Monthly,
			row.Yearly,
			row.Total,
			row.Exempt,
			row.LastUpdated.UnixMilli(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, row := range rows {
		tag, err := br.Exec()
		if err != nil {
			r.logger.Error("failed to save player row", "player_id", row.ID, "error", err)
			results[row.ID] = false
			continue
		}
		results[row.ID] = tag.RowsAffected() > 0
	}
	return results, nil
}

// ResetCategories zeroes the given counters for every stored player. The
// zeroing is unconditional: a reset is an authoritative system action, not
// a speculative client write, so the watermark guard does not apply.
func (r *Repository) ResetCategories(ctx context.Context, categories []domain.Category, watermark time.Time) error {
	set := ""
	for _, category := range categories {
		column, ok := categoryColumn(category)
		if !ok {
			continue
		}
		set += column + " = 0, "
	}
	if set == "" {
		return nil
	}

	query := "UPDATE players SET " + set + "last_updated = $1"
	_, err := r.pool.Exec(ctx, query, watermark.UnixMilli())
	if err != nil {
		return fmt.Errorf("resetting play time: %w", err)
	}
	return nil
}

// TopTen returns the ten highest non-exempt rows for a persisted
// category, descending. Session has no durable counter and yields an
// empty result.
func (r *Repository) TopTen(ctx context.Context, category domain.Category) ([]domain.Position, error) {
	column, ok := categoryColumn(category.Resolve())
	if !ok {
		return nil, nil
	}

	// uuid as secondary key keeps equal-seconds rows in a fixed order
	// across refreshes.
	query := fmt.Sprintf(`
		SELECT uuid, name, %s
		FROM players
		WHERE exempt = FALSE
		ORDER BY %s DESC, uuid
		LIMIT %d
	`, column, column, domain.TopTenSize)

	pgRows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying top ten: %w", err)
	}
	defer pgRows.Close()

	var positions []domain.Position
	for pgRows.Next() {
		var p domain.Position
		if err := pgRows.Scan(&p.ID, &p.Name, &p.Seconds); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, pgRows.Err()
}

// ExportAll retrieves every stored row, for backups.
func (r *Repository) ExportAll(ctx context.Context) ([]domain.PlayerRow, error) {
	query := `
		SELECT uuid, name, daily, weekly, monthly, yearly, total, exempt, last_updated
		FROM players
		ORDER BY uuid
	`
	pgRows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("exporting players: %w", err)
	}
	defer pgRows.Close()

	var rows []domain.PlayerRow
	for pgRows.Next() {
		var row domain.PlayerRow
		var lastUpdated int64
		if err := pgRows.Scan(
			&row.ID,
			&row.Name,
			&row.Daily,
			&row.Weekly,
			&row.Monthly,
			&row.Yearly,
			&row.Total,
			&row.Exempt,
			&lastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		row.LastUpdated = time.UnixMilli(lastUpdated)
		rows = append(rows, row)
	}
	return rows, pgRows.Err()
}

// categoryColumn maps a persisted category onto its column name. Only
// known categories map, so caller input can never reach the SQL text.
func categoryColumn(category domain.Category) (string, bool) {
	switch category {
	case domain.CategoryDaily:
		return "daily", true
	case domain.CategoryWeekly:
		return "weekly", true
	case domain.CategoryMonthly:
		return "monthly", true
	case domain.CategoryYearly:
		return "yearly", true
	case domain.CategoryTotal:
		return "total", true
	}
	return "", false
}
