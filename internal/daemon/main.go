// Package daemon boots the service: database connection, schema migration,
// seed data and the web service.
package daemon

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/audit"
	"github.com/nasuha-connect/nasuha-connect/internal/config"
	"github.com/nasuha-connect/nasuha-connect/internal/db/dsn"
	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
	"github.com/nasuha-connect/nasuha-connect/internal/logger"
	"github.com/nasuha-connect/nasuha-connect/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)

	go d.webService.WaitShutdown()

	return d.webService.Start(addr)
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if err := logger.Init(cfg.Log); err != nil {
		return nil, errors.Wrap(err, "failed to init logging")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(
		&models.Korda{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.User{},
		&models.MediaCategory{},
		&models.MediaContent{},
		&models.AuditLog{},
	); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	if err = seed(cfg, db); err != nil {
		return nil, errors.Wrap(err, "failed to seed database")
	}

	recorder := audit.NewRecorder(db)

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db, recorder),
	}, nil
}

// openDatabase opens a GORM handle for the configured engine.
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey
// regardless of the driver.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(cfg.DB.GormEngine) {
	case "postgres":
		dialector = gormpostgres.Open(dsn.CreatePostgres(cfg))
	case "mysql", "":
		dialector = gormmysql.Open(dsn.CreateMySQL(cfg))
	default:
		return nil, errors.Errorf("unknown database engine: %s", cfg.DB.GormEngine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	log.Info().Str("engine", cfg.DB.GormEngine).Str("host", cfg.DB.Host).
		Msg("database connected")

	return db, nil
}
