package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./pressroom.db" description:"SQLite database file"`

	// Application configuration
	AccountsDir  string `long:"accounts-dir" env:"ACCOUNTS_DIR" default:"./accounts" description:"Directory containing account seed files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://press.example.com)"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SyncInterval int    `long:"sync-interval" env:"SYNC_INTERVAL" default:"300" description:"Account seed sync interval in seconds"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Media configuration
	MediaBackend      string `long:"media-backend" env:"MEDIA_BACKEND" default:"local" choice:"local" choice:"remote" description:"Media store backend"`
	MediaDir          string `long:"media-dir" env:"MEDIA_DIR" default:"./media" description:"Directory for the local media store"`
	MediaEndpoint     string `long:"media-endpoint" env:"MEDIA_ENDPOINT" description:"Upload endpoint of the remote media store (e.g., https://api.example.com/v1_1/demo)"`
	MediaUploadPreset string `long:"media-upload-preset" env:"MEDIA_UPLOAD_PRESET" description:"Unsigned upload preset of the remote media store"`
	MediaFolder       string `long:"media-folder" env:"MEDIA_FOLDER" default:"posts" description:"Folder media is uploaded under"`
	MediaTimeout      int    `long:"media-timeout" env:"MEDIA_TIMEOUT" default:"60" description:"Timeout for a single media upload in seconds"`
	ImageMaxWidth     int    `long:"image-max-width" env:"IMAGE_MAX_WIDTH" default:"1200" description:"Images wider than this are downsized before upload"`
	ImageQuality      int    `long:"image-quality" env:"IMAGE_QUALITY" default:"80" description:"JPEG quality used when re-encoding images (1-100)"`

	// Publication rules
	PublishCost           int `long:"publish-cost" env:"PUBLISH_COST" default:"20" description:"Points debited from the author per published article"`
	VerifiedPriorityScore int `long:"verified-priority" env:"VERIFIED_PRIORITY_SCORE" default:"1000" description:"Priority score given to articles of verified authors"`
	ResetDelay            int `long:"reset-delay" env:"RESET_DELAY_MS" default:"1000" description:"Delay in milliseconds before upload progress resets"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Pressroom/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                raw.DBPath,
		AccountsDir:           raw.AccountsDir,
		Port:                  raw.Port,
		BaseUrl:               raw.BaseUrl,
		WorkerCount:           raw.WorkerCount,
		SyncInterval:          raw.SyncInterval,
		APIAccessKey:          raw.APIAccessKey,
		MediaBackend:          raw.MediaBackend,
		MediaDir:              raw.MediaDir,
		MediaEndpoint:         raw.MediaEndpoint,
		MediaUploadPreset:     raw.MediaUploadPreset,
		MediaFolder:           raw.MediaFolder,
		MediaTimeout:          raw.MediaTimeout,
		ImageMaxWidth:         raw.ImageMaxWidth,
		ImageQuality:          raw.ImageQuality,
		PublishCost:           raw.PublishCost,
		VerifiedPriorityScore: raw.VerifiedPriorityScore,
		ResetDelay:            time.Duration(raw.ResetDelay) * time.Millisecond,
		UserAgent:             raw.UserAgent,
		Timezone:              raw.Timezone,
		Debug:                 raw.Debug,
		Version:               GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// PublicURL returns the externally reachable base URL of the service.
func (c *Cfg) PublicURL() string {
	if c.BaseUrl != "" {
		return c.BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", c.Port)
}

func validate(cfg *Cfg) error {
	if cfg.MediaBackend == MediaBackendRemote && cfg.MediaEndpoint == "" {
		return fmt.Errorf("media endpoint is required for the remote media backend")
	}
	if cfg.ImageQuality < 1 || cfg.ImageQuality > 100 {
		return fmt.Errorf("image quality must be between 1 and 100, got %d", cfg.ImageQuality)
	}
	if cfg.ImageMaxWidth <= 0 {
		return fmt.Errorf("image max width must be positive, got %d", cfg.ImageMaxWidth)
	}
	if cfg.PublishCost < 0 {
		return fmt.Errorf("publish cost must be non-negative, got %d", cfg.PublishCost)
	}
	if cfg.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
