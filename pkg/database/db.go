package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

// DB is the transactional store. Every method takes the request context; the
// same methods run inside InTx on the transaction handle.
type DB struct {
	*gorm.DB
}

func Open(cfg config.DatabaseConfig, log *zap.Logger, logLevel logger.LogLevel) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one writer at a time; sqlite returns SQLITE_BUSY otherwise
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := autoMigrate(db, log); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{DB: db}, nil
}

func autoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	return db.AutoMigrate(
		&models.User{},
		&models.Space{},
		&models.Stream{},
		&models.Upvote{},
		&models.CurrentStream{},
	)
}

// InTx runs fn inside a single database transaction.
func (db *DB) InTx(ctx context.Context, fn func(tx *DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{DB: tx})
	})
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.ErrNotFound, "%s not found", what)
	}
	return err
}

// User operations

// UpsertIdentityUser maps an external identity onto a local user row.
func (db *DB) UpsertIdentityUser(ctx context.Context, user *models.User) (*models.User, error) {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "subject"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var stored models.User
	if err := db.WithContext(ctx).
		First(&stored, "provider = ? AND subject = ?", user.Provider, user.Subject).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &stored, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// LockUser takes a row lock on the user for the rest of the transaction, so
// per-user checks such as the space limit serialise.
func (db *DB) LockUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
