// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mtnptrsn/zon/models"
)

// PostgreSQL 数据库实现 over database/sql and lib/pq.
type PostgreSQL struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string, timeout time.Duration) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, unavailable("ping", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db, timeout: timeout}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS rooms (
            id VARCHAR(36) PRIMARY KEY,
            short_id VARCHAR(16) UNIQUE NOT NULL,
            status VARCHAR(16) NOT NULL,
            version BIGINT NOT NULL DEFAULT 1,
            document JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS player_positions (
            id BIGSERIAL PRIMARY KEY,
            room_id VARCHAR(36) NOT NULL,
            player_id VARCHAR(64) NOT NULL,
            longitude DOUBLE PRECISION NOT NULL,
            latitude DOUBLE PRECISION NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);
        CREATE INDEX IF NOT EXISTS idx_rooms_document ON rooms USING GIN (document jsonb_path_ops);
        CREATE INDEX IF NOT EXISTS idx_positions_room_player ON player_positions(room_id, player_id);
    `)
	return err
}

func (p *PostgreSQL) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return p.queryOne(ctx, `SELECT document, version FROM rooms WHERE id = $1`, id)
}

func (p *PostgreSQL) FindByShortID(ctx context.Context, shortID string) (*models.Room, error) {
	return p.queryOne(ctx, `SELECT document, version FROM rooms WHERE short_id = $1`, shortID)
}

func (p *PostgreSQL) queryOne(ctx context.Context, query string, arg any) (*models.Room, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	var (
		doc     []byte
		version int64
	)
	err := p.db.QueryRowContext(ctx, query, arg).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, unavailable("find room", err)
	}
	return decodeRoom(doc, version)
}

func (p *PostgreSQL) FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Room, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return p.queryMany(ctx,
		`SELECT document, version FROM rooms WHERE status = ANY($1) ORDER BY created_at`,
		pq.Array(names))
}

func (p *PostgreSQL) FindByPlayer(ctx context.Context, playerID string) ([]*models.Room, error) {
	probe, err := playerProbe(playerID)
	if err != nil {
		return nil, err
	}
	return p.queryMany(ctx,
		`SELECT document, version FROM rooms WHERE document @> $1::jsonb ORDER BY created_at`,
		probe)
}

func (p *PostgreSQL) queryMany(ctx context.Context, query string, args ...any) ([]*models.Room, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("scan rooms", err)
	}
	defer rows.Close()

	var out []*models.Room
	for rows.Next() {
		var (
			doc     []byte
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, unavailable("scan rooms", err)
		}
		room, err := decodeRoom(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, unavailable("scan rooms", rows.Err())
}

func (p *PostgreSQL) Save(ctx context.Context, room *models.Room) error {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	next := room.Version + 1
	doc, err := encodeRoom(room, next)
	if err != nil {
		return err
	}

	if room.Version == 0 {
		_, err := p.db.ExecContext(ctx, `
            INSERT INTO rooms (id, short_id, status, version, document)
            VALUES ($1, $2, $3, $4, $5)
        `, room.ID, room.ShortID, string(room.Status), next, doc)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrVersionConflict
			}
			return unavailable("insert room", err)
		}
		room.Version = next
		return nil
	}

	res, err := p.db.ExecContext(ctx, `
        UPDATE rooms
        SET status = $3, version = $4, document = $5, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND version = $2
    `, room.ID, room.Version, string(room.Status), next, doc)
	if err != nil {
		return unavailable("update room", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update room", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	room.Version = next
	return nil
}

func (p *PostgreSQL) AppendPosition(ctx context.Context, pos models.PlayerPosition) error {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
        INSERT INTO player_positions (room_id, player_id, longitude, latitude, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, pos.RoomID, pos.PlayerID, pos.Coordinate.Longitude, pos.Coordinate.Latitude, pos.CreatedAt)
	return unavailable("append position", err)
}

func (p *PostgreSQL) Positions(ctx context.Context, roomID, playerID string) ([]models.PlayerPosition, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, player_id, longitude, latitude, created_at
        FROM player_positions
        WHERE room_id = $1 AND ($2 = '' OR player_id = $2)
        ORDER BY created_at, id
    `, roomID, playerID)
	if err != nil {
		return nil, unavailable("list positions", err)
	}
	defer rows.Close()

	var out []models.PlayerPosition
	for rows.Next() {
		var pos models.PlayerPosition
		if err := rows.Scan(&pos.RoomID, &pos.PlayerID, &pos.Coordinate.Longitude, &pos.Coordinate.Latitude, &pos.CreatedAt); err != nil {
			return nil, unavailable("list positions", err)
		}
		out = append(out, pos)
	}
	return out, unavailable("list positions", rows.Err())
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
