package account

// Seed describes one account file: <accounts-dir>/<id>.yml
type Seed struct {
	ID            string // Derived from filename (without .yml extension)
	Name          string `yaml:"name"`
	Email         string `yaml:"email"`
	Nationality   string `yaml:"nationality"`
	Verified      bool   `yaml:"verified"`
	InitialPoints int    `yaml:"initial_points"`
}
