package config

// Option adjusts how Load locates and reads configuration.
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
	searchDirs []string
}

// WithConfigFile reads path instead of searching for hrcap.toml. A missing
// file is then an error.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix overrides the HRCAP environment prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithSearchDirs replaces the directories searched for hrcap.toml.
func WithSearchDirs(dirs ...string) Option {
	return func(o *options) error {
		o.searchDirs = dirs
		return nil
	}
}
