package account

import (
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/pressroom/app/database"
)

const defaultInitialPoints = 100

type SeedCache struct {
	accountsDir string
	cache       map[string]*Seed
	mu          sync.RWMutex
}

func NewSeedCache(accountsDir string) *SeedCache {
	return &SeedCache{
		accountsDir: accountsDir,
		cache:       make(map[string]*Seed),
	}
}

func (sc *SeedCache) Run() error {
	if _, err := os.Stat(sc.accountsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.accountsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		accountID := strings.TrimSuffix(filepath.Base(file), ".yml")

		seed, err := sc.LoadSeed(accountID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Account seed loaded", "account", accountID, "verified", seed.Verified)
	}

	return nil
}

func (sc *SeedCache) LoadSeed(accountID string) (*Seed, error) {
	seedFile := sc.getSeedFilePath(accountID)
	seed, err := sc.parseSeed(seedFile)
	if err != nil {
		return nil, err
	}

	seed.ID = accountID

	if err := sc.validateSeed(seed); err != nil {
		return nil, fmt.Errorf("invalid seed %s: %w", seedFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[seed.ID] = seed

	return seed, nil
}

func (sc *SeedCache) GetSeed(accountID string) (*Seed, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	seed, ok := sc.cache[accountID]
	if !ok {
		return nil, fmt.Errorf("account seed with id '%s' not found", accountID)
	}
	return seed, nil
}

func (sc *SeedCache) GetSeeds() map[string]*Seed {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	seedsCopy := make(map[string]*Seed, len(sc.cache))
	for k, v := range sc.cache {
		seedsCopy[k] = v
	}
	return seedsCopy
}

func (sc *SeedCache) GetSeedCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

// ToUserSeed converts the file representation into the repository record
func (s *Seed) ToUserSeed() database.UserSeed {
	return database.UserSeed{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		Nationality:   s.Nationality,
		Verified:      s.Verified,
		InitialPoints: s.InitialPoints,
	}
}

func (sc *SeedCache) parseSeed(seedFile string) (*Seed, error) {
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// An explicit initial_points: 0 is kept; only a missing key gets the default
	var presence struct {
		InitialPoints *int `yaml:"initial_points"`
	}
	if err := yaml.Unmarshal(data, &presence); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if presence.InitialPoints == nil {
		seed.InitialPoints = defaultInitialPoints
	}

	return &seed, nil
}

func (sc *SeedCache) validateSeed(seed *Seed) error {
	if seed == nil {
		return fmt.Errorf("seed is nil")
	}

	requiredFields := map[string]string{
		"account id": seed.ID,
		"name":       seed.Name,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if seed.Email != "" {
		if _, err := mail.ParseAddress(seed.Email); err != nil {
			return fmt.Errorf("invalid email %q: %w", seed.Email, err)
		}
	}

	if seed.InitialPoints < 0 {
		return fmt.Errorf("initial points must be non-negative")
	}

	return nil
}

func (sc *SeedCache) getSeedFilePath(accountID string) string {
	return filepath.Join(sc.accountsDir, accountID+".yml")
}
