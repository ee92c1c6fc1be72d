// Package config defines the YAML-backed configuration surfaces: the
// client's controller endpoint and selector defaults, an exporter's driver
// tree declaration and lifecycle hooks, and the shared user-level config
// file holding named client profiles — generalizing sd-wire.ReadConfig
// (pkg/drivers/sd-wire/config.go), which reads a single per-device YAML file
// with yaml.v3, to the three config surfaces a full client/exporter pair
// needs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/jumpstarter-dev/jumpstarter/pkg/exporter"
)

// ClientConfig is a named client profile: which controller to talk to, and
// the default lease selector/timeout behavior for `jmp client lease`.
type ClientConfig struct {
	Name          string            `yaml:"name"`
	Endpoint      string            `yaml:"endpoint"`
	Token         string            `yaml:"token"`
	Selector      map[string]string `yaml:"selector"`
	AllowUnsafe   bool              `yaml:"allowUnsafe" default:"false"`
	LeaseDuration time.Duration     `yaml:"leaseDuration" default:"1800000000000"`
}

// ExportEntry declares one node of an exporter's driver tree: which driver
// kind to instantiate (matched against a DriverFactories key) and the
// kind-specific parameters, plus nested children for composite nodes.
type ExportEntry struct {
	Driver   string                 `yaml:"driver"`
	Labels   map[string]string      `yaml:"labels"`
	Params   map[string]interface{} `yaml:"params"`
	Children map[string]ExportEntry `yaml:"children"`
}

// HooksConfig declares the two lifecycle hook scripts, mapped 1:1 onto
// exporter.HookConfig once loaded.
type HooksConfig struct {
	BeforeLease HookEntry `yaml:"beforeLease"`
	AfterLease  HookEntry `yaml:"afterLease"`
}

// HookEntry is a hook's on-disk representation; Timeout parses as a Go
// duration string ("30s") rather than exporter.HookConfig's time.Duration.
type HookEntry struct {
	Script    string        `yaml:"script"`
	Timeout   time.Duration `yaml:"timeout" default:"30000000000"`
	OnFailure string        `yaml:"onFailure" default:"warn"`
}

// ToHookConfig converts the on-disk representation into the runtime type
// pkg/exporter.HookRunner consumes.
func (h HookEntry) ToHookConfig() exporter.HookConfig {
	return exporter.HookConfig{
		Script:    h.Script,
		Timeout:   h.Timeout,
		OnFailure: exporter.OnFailure(h.OnFailure),
	}
}

// ExporterConfig is an exporter's full on-disk configuration: identity
// labels, the declared driver tree, lifecycle hooks, and where its
// per-lease Unix sockets live.
type ExporterConfig struct {
	Endpoint  string                 `yaml:"endpoint"`
	Token     string                 `yaml:"token"`
	Labels    map[string]string      `yaml:"labels"`
	Export    map[string]ExportEntry `yaml:"export"`
	Hooks     HooksConfig            `yaml:"hooks"`
	SocketDir string                 `yaml:"socketDir" default:"/var/run/jumpstarter"`
}

// UserConfig is the shared `~/.config/jumpstarter/config.yaml` file: the
// set of named client profiles and which one is active by default,
// mirroring kubectl's kubeconfig "current-context" convention.
type UserConfig struct {
	CurrentClient string         `yaml:"current-client"`
	Clients       []ClientConfig `yaml:"clients"`
}

// LoadClientConfig reads and default-fills a ClientConfig from path.
func LoadClientConfig(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: loading client config %q: %w", path, err)
	}
	return &cfg, nil
}

// LoadExporterConfig reads and default-fills an ExporterConfig from path.
func LoadExporterConfig(path string) (*ExporterConfig, error) {
	var cfg ExporterConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: loading exporter config %q: %w", path, err)
	}
	return &cfg, nil
}

// LoadUserConfig reads the shared profile file from path.
func LoadUserConfig(path string) (*UserConfig, error) {
	var cfg UserConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: loading user config %q: %w", path, err)
	}
	return &cfg, nil
}

// Client looks up a named profile, or the current-client if name is empty.
func (u *UserConfig) Client(name string) (*ClientConfig, error) {
	if name == "" {
		name = u.CurrentClient
	}
	for i := range u.Clients {
		if u.Clients[i].Name == name {
			return &u.Clients[i], nil
		}
	}
	return nil, fmt.Errorf("config: no client profile named %q", name)
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return err
	}
	return defaults.Set(out)
}
