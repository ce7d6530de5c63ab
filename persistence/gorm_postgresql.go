// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string, timeout time.Duration) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db, timeout: timeout}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoom{},
		&models.GormPlayerPosition{},
	)
}

func (p *GormPostgreSQL) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return p.findOne(ctx, "id = ?", id)
}

func (p *GormPostgreSQL) FindByShortID(ctx context.Context, shortID string) (*models.Room, error) {
	return p.findOne(ctx, "short_id = ?", shortID)
}

func (p *GormPostgreSQL) findOne(ctx context.Context, query string, arg any) (*models.Room, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	var row models.GormRoom
	if err := p.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, unavailable("find room", err)
	}
	return decodeRoom(row.Document, row.Version)
}

func (p *GormPostgreSQL) FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Room, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return p.findMany(ctx, "status IN ?", names)
}

// FindByPlayer relies on jsonb containment over the players array.
func (p *GormPostgreSQL) FindByPlayer(ctx context.Context, playerID string) ([]*models.Room, error) {
	probe, err := playerProbe(playerID)
	if err != nil {
		return nil, err
	}
	return p.findMany(ctx, "document @> ?::jsonb", probe)
}

func (p *GormPostgreSQL) findMany(ctx context.Context, query string, arg any) ([]*models.Room, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	var rows []models.GormRoom
	if err := p.db.WithContext(ctx).Where(query, arg).Order("created_at").Find(&rows).Error; err != nil {
		return nil, unavailable("scan rooms", err)
	}
	out := make([]*models.Room, 0, len(rows))
	for _, row := range rows {
		room, err := decodeRoom(row.Document, row.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, nil
}

// Save inserts new rooms and updates existing ones only when the version
// still matches.
func (p *GormPostgreSQL) Save(ctx context.Context, room *models.Room) error {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	next := room.Version + 1
	doc, err := encodeRoom(room, next)
	if err != nil {
		return err
	}

	db := p.db.WithContext(ctx)
	if room.Version == 0 {
		row := models.GormRoom{
			ID:       room.ID,
			ShortID:  room.ShortID,
			Status:   string(room.Status),
			Version:  next,
			Document: doc,
		}
		if err := db.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrVersionConflict
			}
			return unavailable("insert room", err)
		}
		room.Version = next
		return nil
	}

	result := db.Model(&models.GormRoom{}).
		Where("id = ? AND version = ?", room.ID, room.Version).
		Updates(map[string]any{
			"status":     string(room.Status),
			"version":    next,
			"document":   doc,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return unavailable("update room", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	room.Version = next
	return nil
}

func (p *GormPostgreSQL) AppendPosition(ctx context.Context, pos models.PlayerPosition) error {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	row := models.GormPlayerPosition{
		RoomID:    pos.RoomID,
		PlayerID:  pos.PlayerID,
		Longitude: pos.Coordinate.Longitude,
		Latitude:  pos.Coordinate.Latitude,
		CreatedAt: pos.CreatedAt,
	}
	return unavailable("append position", p.db.WithContext(ctx).Create(&row).Error)
}

func (p *GormPostgreSQL) Positions(ctx context.Context, roomID, playerID string) ([]models.PlayerPosition, error) {
	ctx, cancel := bounded(ctx, p.timeout)
	defer cancel()

	q := p.db.WithContext(ctx).Where("room_id = ?", roomID)
	if playerID != "" {
		q = q.Where("player_id = ?", playerID)
	}
	var rows []models.GormPlayerPosition
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, unavailable("list positions", err)
	}
	out := make([]models.PlayerPosition, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.PlayerPosition{
			RoomID:     r.RoomID,
			PlayerID:   r.PlayerID,
			Coordinate: geo.Coordinate{Longitude: r.Longitude, Latitude: r.Latitude},
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
