package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yashrajoria/storefront-api/auth"
	"github.com/yashrajoria/storefront-api/config"
	"github.com/yashrajoria/storefront-api/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectPostgres opens the pool, retrying while the database comes up.
func ConnectPostgres(logger *zap.Logger, cfg config.PostgresConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}

			logger.Info("Connected to PostgreSQL successfully",
				zap.String("host", cfg.Host),
				zap.String("db", cfg.DB),
			)
			DB = db
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// Models lists every table in migration order.
func Models() []any {
	base := []any{
		&models.Role{},
		&models.Account{},
		&models.RefreshToken{},
		&models.Otp{},
		&models.Product{},
		&models.Image{},
	}
	base = append(base, models.ComponentModels()...)
	return append(base,
		&models.Cart{},
		&models.CartItem{},
		&models.Campaign{},
		&models.Subscriber{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
	)
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	return nil
}

// SeedRoles inserts the default roles. Existing rows are left alone so
// permission edits made by admins survive restarts.
func SeedRoles(db *gorm.DB) error {
	roles := models.DefaultRoles()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&roles).Error
}

// EnsureAdmin creates the bootstrap admin account when it does not exist.
func EnsureAdmin(db *gorm.DB, logger *zap.Logger, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.Account
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var role models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&role).Error; err != nil {
		return fmt.Errorf("admin role missing: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now()
	admin := &models.Account{
		Email:           &email,
		Name:            "Administrator",
		PasswordHash:    hash,
		EmailVerifiedAt: &now,
		RoleID:          role.ID,
		IsActive:        true,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	logger.Info("Bootstrap admin account created", zap.String("email", email))
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
