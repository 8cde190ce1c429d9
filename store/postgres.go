package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PostgresStore keeps one table per project ("crossgrep_<project_id>")
// with a pgvector embedding column, plus a small registry table that
// records each collection's dimension.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Project ids come validated upstream, but table names are built by
// string interpolation so the store re-checks before touching SQL.
var safeProjectID = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// NewPostgresStore connects to PostgreSQL, enables the vector
// extension, and prepares the collection registry.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS crossgrep_collections (
			project_id TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create collection registry: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func tableName(projectID string) (string, error) {
	if !safeProjectID.MatchString(projectID) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	return "crossgrep_" + projectID, nil
}

func (s *PostgresStore) EnsureCollection(ctx context.Context, projectID string, dimension int, recreate bool) error {
	table, err := tableName(projectID)
	if err != nil {
		return err
	}

	var existing int
	err = s.pool.QueryRow(ctx,
		"SELECT dimension FROM crossgrep_collections WHERE project_id = $1", projectID).Scan(&existing)
	switch {
	case err == nil:
		if existing == dimension {
			return nil
		}
		if !recreate {
			return fmt.Errorf("collection for %s has dimension %d, want %d: %w",
				projectID, existing, dimension, ErrDimensionMismatch)
		}
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// New collection.
	default:
		return fmt.Errorf("failed to look up collection %s: %w", projectID, err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           UUID PRIMARY KEY,
			embedding    vector(%d) NOT NULL,
			project_id   TEXT NOT NULL,
			project_name TEXT NOT NULL DEFAULT '',
			file_path    TEXT NOT NULL,
			language     TEXT NOT NULL DEFAULT '',
			chunk_index  INTEGER NOT NULL DEFAULT 0,
			content      TEXT NOT NULL DEFAULT '',
			metadata     JSONB
		)`, table, dimension))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_file_path_idx ON %s (file_path)", table, table))
	if err != nil {
		return fmt.Errorf("failed to index table %s: %w", table, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO crossgrep_collections (project_id, dimension) VALUES ($1, $2)
		ON CONFLICT (project_id) DO UPDATE SET dimension = EXCLUDED.dimension`,
		projectID, dimension)
	if err != nil {
		return fmt.Errorf("failed to register collection %s: %w", projectID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, projectID string) error {
	table, err := tableName(projectID)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		"DELETE FROM crossgrep_collections WHERE project_id = $1", projectID)
	if err != nil {
		return fmt.Errorf("failed to unregister collection %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) GetCollectionInfo(ctx context.Context, projectID string) (*CollectionInfo, error) {
	table, err := tableName(projectID)
	if err != nil {
		return nil, err
	}

	info := &CollectionInfo{ProjectID: projectID}
	err = s.pool.QueryRow(ctx,
		"SELECT dimension FROM crossgrep_collections WHERE project_id = $1", projectID).Scan(&info.Dimension)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up collection %s: %w", projectID, err)
	}

	err = s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&info.Points)
	if err != nil {
		return nil, fmt.Errorf("failed to count points for %s: %w", projectID, err)
	}
	return info, nil
}

func (s *PostgresStore) UpsertBatch(ctx context.Context, projectID string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	table, err := tableName(projectID)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, project_id, project_name, file_path, language, chunk_index, content, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			project_name = EXCLUDED.project_name,
			file_path = EXCLUDED.file_path,
			language = EXCLUDED.language,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata`, table)

	batch := &pgx.Batch{}
	for _, p := range points {
		var meta []byte
		if len(p.Payload.Metadata) > 0 {
			meta, err = json.Marshal(p.Payload.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", p.ID, err)
			}
		}
		batch.Queue(sql,
			p.ID,
			pgvector.NewVector(p.Vector),
			p.Payload.ProjectID,
			p.Payload.ProjectName,
			p.Payload.FilePath,
			p.Payload.Language,
			p.Payload.ChunkIndex,
			p.Payload.Content,
			meta,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range points {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert points for %s: %w", projectID, err)
		}
	}
	return nil
}

func (s *PostgresStore) DeleteByFile(ctx context.Context, projectID, filePath string) error {
	table, err := tableName(projectID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE file_path = $1", table), filePath)
	if err != nil {
		return fmt.Errorf("failed to delete points for %s in %s: %w", filePath, projectID, err)
	}
	return nil
}

func (s *PostgresStore) SearchProject(ctx context.Context, projectID string, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchHit, error) {
	table, err := tableName(projectID)
	if err != nil {
		return nil, err
	}

	// Cosine similarity = 1 - cosine distance (<=>).
	sql := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score,
		       project_id, project_name, file_path, language, chunk_index, content, metadata
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2`, table)
	args := []any{pgvector.NewVector(vector), threshold}

	if filter != nil && filter.Language != "" {
		args = append(args, filter.Language)
		sql += fmt.Sprintf(" AND language = $%d", len(args))
	}
	if filter != nil && filter.PathPrefix != "" {
		args = append(args, filter.PathPrefix+"%")
		sql += fmt.Sprintf(" AND file_path LIKE $%d", len(args))
	}

	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search project %s: %w", projectID, err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var meta []byte
		err := rows.Scan(&hit.ID, &hit.Score,
			&hit.Payload.ProjectID, &hit.Payload.ProjectName, &hit.Payload.FilePath,
			&hit.Payload.Language, &hit.Payload.ChunkIndex, &hit.Payload.Content, &meta)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &hit.Payload.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", hit.ID, err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *PostgresStore) Scroll(ctx context.Context, projectID string, offset string, limit int) ([]Point, string, error) {
	table, err := tableName(projectID)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}

	sql := fmt.Sprintf(`
		SELECT id, embedding,
		       project_id, project_name, file_path, language, chunk_index, content, metadata
		FROM %s`, table)
	args := []any{}
	if offset != "" {
		args = append(args, offset)
		sql += " WHERE id > $1"
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to scroll project %s: %w", projectID, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var vec pgvector.Vector
		var meta []byte
		err := rows.Scan(&p.ID, &vec,
			&p.Payload.ProjectID, &p.Payload.ProjectName, &p.Payload.FilePath,
			&p.Payload.Language, &p.Payload.ChunkIndex, &p.Payload.Content, &meta)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan scroll row: %w", err)
		}
		p.Vector = vec.Slice()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Payload.Metadata); err != nil {
				return nil, "", fmt.Errorf("failed to decode metadata for %s: %w", p.ID, err)
			}
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(points) == limit {
		next = points[len(points)-1].ID
	}
	return points, next, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
