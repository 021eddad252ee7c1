package config

import (
	"time"

	"github.com/nasuha-connect/nasuha-connect/internal/logger"
)

// Auth holds session token and login policy settings.
type Auth struct {
	JWTSecret         string        // symmetric signing secret, minimum 32 characters
	TokenExpiry       time.Duration // token lifetime, default 7 days
	LoginRateLimit    int           // login attempts per minute per IP
	RegisterRateLimit int           // register attempts per minute per IP
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Auth      Auth
	Webserver Webserver
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
	CORSOrigin     string // allowed origin for the dashboard
}
