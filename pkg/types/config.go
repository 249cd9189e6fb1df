package types

import "errors"

// Config holds backend selection and parameters for opening a Store.
type Config struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// Name is the database identifier; the SQLite file is <DataDir>/<Name>.db.
	Name string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultStoreName is the database identifier used when Config.Name is empty.
const DefaultStoreName = "ResistanceDB"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrInvalidName    = errors.New("invalid store name")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendMemory: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	for _, r := range c.Name {
		if r == '/' || r == '\\' || r == 0 {
			return ErrInvalidName
		}
	}
	return nil
}

// StoreName returns Name, or DefaultStoreName when Name is empty.
func (c Config) StoreName() string {
	if c.Name == "" {
		return DefaultStoreName
	}
	return c.Name
}
