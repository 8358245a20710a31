package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/appcore/logger"
)

// FileSystem abstracts file access for the loader (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	ReadEnv(path string) (map[string]string, error)
	LookupEnv(key string) (string, bool)
}

// RealFileSystem implements FileSystem with the OS.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadEnv parses a .env file without touching the process environment.
func (RealFileSystem) ReadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

func (RealFileSystem) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Resolver finds config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths if provided, otherwise searches the
// standard locations.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(configSearchPaths(serviceName))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(envSearchPaths(serviceName))
	}
	return resolved
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(serviceName string) []string {
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		paths = append(paths,
			fmt.Sprintf("./cmd/%s/%s", serviceName, name),
			"./config/"+name,
			"./"+name,
			"../"+name,
			"../../"+name,
		)
	}
	return paths
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // explicit config file path (optional)
	EnvFile    string // explicit .env path (optional)
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// EnvName returns the environment variable bound to a settings key,
// e.g. "postgres.pool_size" -> "POSTGRES_POOL_SIZE".
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds Settings for a service. Missing files are not errors; an
// unreadable file is logged and skipped. The result is validated.
func Load(serviceName string, opts ...LoaderOption) (*Settings, error) {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	settings, err := loadFromResolvedFiles(files, lc.FileSystem)
	if err != nil {
		return nil, fmt.Errorf("load config for service %s: %w", serviceName, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func loadFromResolvedFiles(files ResolvedFiles, fs FileSystem) (*Settings, error) {
	v := viper.New()
	// An exported empty variable is a value, not an absence.
	v.AllowEmptyEnv(true)

	// 1. Defaults, one viper key per leaf.
	defaults, err := flattenDefaults(DefaultSettings())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(defaults))
	for key, val := range defaults {
		v.SetDefault(key, val)
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// 2. YAML config.
	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("Failed to load config file", map[string]interface{}{
				"file":  files.ConfigFile,
				"error": err.Error(),
			})
		}
	}

	// 3. Process environment.
	for _, key := range keys {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return nil, err
		}
	}

	// 4. .env values fill keys the real environment does not set.
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		dotenv, err := fs.ReadEnv(files.EnvFile)
		if err != nil {
			logger.Warn("Failed to load .env file", map[string]interface{}{
				"file":  files.EnvFile,
				"error": err.Error(),
			})
		} else {
			for _, key := range keys {
				name := EnvName(key)
				if _, inEnv := fs.LookupEnv(name); inEnv {
					continue
				}
				if val, ok := dotenv[name]; ok {
					v.Set(key, val)
				}
			}
		}
	}

	// 5. Decode.
	var settings Settings
	err = v.Unmarshal(&settings, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)), func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &settings, nil
}

// flattenDefaults turns the default Settings into dotted viper keys.
func flattenDefaults(s Settings) (map[string]any, error) {
	var nested map[string]any
	if err := mapstructure.Decode(s, &nested); err != nil {
		return nil, fmt.Errorf("flatten defaults: %w", err)
	}
	flat := make(map[string]any)
	flatten("", nested, flat)
	return flat, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, val := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]any); ok {
			flatten(key, child, out)
			continue
		}
		out[key] = val
	}
}
