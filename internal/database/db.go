package database

import (
	"fmt"
	"time"

	"ber-tracker/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the store and runs migrations. Postgres connections are
// retried because the database container usually starts alongside us.
func Open(driver, dsn string, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxAttempts := 10
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
		maxAttempts = 1
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= maxAttempts; i++ {
		log.Info().Int("attempt", i).Int("max_attempts", maxAttempts).Str("driver", driver).Msg("connecting to database")

		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			break
		}

		log.Warn().Err(err).Msg("failed to connect to database")
		if i < maxAttempts {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to db after %d attempts: %w", maxAttempts, err)
	}

	if driver == DriverSQLite {
		// in-memory databases vanish with their last connection, and
		// sqlite serialises writers anyway
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", driver).Msg("connected to database")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.WorkElement{},
		&models.Budget{},
		&models.BudgetChange{},
		&models.AFE{},
		&models.Invoice{},
		&models.AFEOffset{},
		&models.Production{},
		&models.AuditLog{},
	)
}

type SeedUser struct {
	Username string
	Password string
	Role     models.UserRole
}

// EnsureUsers creates every listed account that does not exist yet.
// Existing accounts, deleted ones included, are left untouched.
func EnsureUsers(db *gorm.DB, log zerolog.Logger, users ...SeedUser) error {
	for _, u := range users {
		var count int64
		if err := db.Unscoped().Model(&models.User{}).
			Where("username = ?", u.Username).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check seed user %s: %w", u.Username, err)
		}
		if count > 0 {
			continue
		}

		if _, err := CreateUser(db, u.Username, u.Password, u.Role); err != nil {
			return fmt.Errorf("create seed user %s: %w", u.Username, err)
		}
		log.Info().Str("username", u.Username).Str("role", string(u.Role)).Msg("created seed user")
	}
	return nil
}

func CreateUser(db *gorm.DB, username, password string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func SetUserRole(db *gorm.DB, username string, role models.UserRole) error {
	res := db.Model(&models.User{}).Where("username = ?", username).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser soft-deletes the account; its username stays reserved.
func DeleteUser(db *gorm.DB, username string) error {
	res := db.Where("username = ?", username).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
