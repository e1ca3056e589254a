package server

import (
	"strings"
	"time"
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// ComboPath is the mount point of the combo server.
	ComboPath string `mapstructure:"combo_path" default:"/combo"`
	// Watch invalidates modules whose manifests change on disk.
	Watch bool `mapstructure:"watch" default:"false"`
	// UseTimeout bounds one POST /modules/use request.
	UseTimeout time.Duration `mapstructure:"use_timeout" default:"60s"`
}

// Mount returns ComboPath with a leading slash and no trailing slash.
func (c Config) Mount() string {
	p := "/" + strings.Trim(c.ComboPath, "/")
	if p == "/" {
		return "/combo"
	}
	return p
}
