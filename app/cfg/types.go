package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	AccountsDir  string
	Port         string
	BaseUrl      string
	WorkerCount  int
	SyncInterval int
	APIAccessKey string

	// Media configuration
	MediaBackend      string
	MediaDir          string
	MediaEndpoint     string
	MediaUploadPreset string
	MediaFolder       string
	MediaTimeout      int
	ImageMaxWidth     int
	ImageQuality      int

	// Publication rules
	PublishCost           int
	VerifiedPriorityScore int
	ResetDelay            time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

const (
	MediaBackendLocal  = "local"
	MediaBackendRemote = "remote"
)
