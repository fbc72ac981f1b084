package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/deployctl/internal/deploy"
	"github.com/danmuck/deployctl/internal/engine"
	"github.com/danmuck/deployctl/internal/topology"
	"github.com/danmuck/deployctl/internal/workspace"
)

type Config struct {
	Workspace WorkspaceConfig
	Names     NamesConfig
	Cache     CacheConfig
	Bootstrap BootstrapConfig
	Runtime   RuntimeConfig
}

type WorkspaceConfig struct {
	Dir             string `toml:"dir"`
	ComposeFile     string `toml:"compose_file"`
	StateRoot       string `toml:"state_root"`
	StatePattern    string `toml:"state_pattern"`
	BuildContext    string `toml:"build_context"`
	Dockerfile      string `toml:"dockerfile"`
	CacheContextDir string `toml:"cache_context_dir"`
}

type NamesConfig struct {
	Prefix     string `toml:"prefix"`
	Image      string `toml:"image"`
	Proxy      string `toml:"proxy"`
	ProxyImage string `toml:"proxy_image"`
}

type CacheConfig struct {
	Images     []string `toml:"images"`
	Dockerfile string   `toml:"dockerfile"`
}

type BootstrapConfig struct {
	Command []string `toml:"command"`
}

type RuntimeConfig struct {
	Docker  string   `toml:"docker"`
	Compose []string `toml:"compose"`
}

type fileConfig struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	Names     NamesConfig     `toml:"names"`
	Cache     CacheConfig     `toml:"cache"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
	Runtime   RuntimeConfig   `toml:"runtime"`
}

// Default returns the configuration used when no file is given. Workspace.Dir
// is empty and resolves to the working directory.
func Default() Config {
	layout := workspace.DefaultLayout()
	names := topology.DefaultNames()
	return Config{
		Workspace: WorkspaceConfig{
			ComposeFile:     layout.ComposeFile,
			StateRoot:       layout.StateRoot,
			StatePattern:    layout.StatePattern,
			BuildContext:    layout.BuildContext,
			Dockerfile:      layout.Dockerfile,
			CacheContextDir: layout.CacheContextDir,
		},
		Names: NamesConfig{
			Prefix:     names.Prefix,
			Image:      names.Image,
			Proxy:      names.Proxy,
			ProxyImage: names.ProxyImage,
		},
		Cache: CacheConfig{
			Images: append([]string{}, deploy.DefaultCacheImages...),
		},
		Bootstrap: BootstrapConfig{
			Command: append([]string{}, deploy.DefaultBootstrapCommand...),
		},
		Runtime: RuntimeConfig{
			Docker:  engine.DefaultDocker,
			Compose: append([]string{}, engine.DefaultCompose...),
		},
	}
}

// Load applies the keys present in path onto Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}

	setString(meta, &cfg.Workspace.Dir, raw.Workspace.Dir, "workspace", "dir")
	setString(meta, &cfg.Workspace.ComposeFile, raw.Workspace.ComposeFile, "workspace", "compose_file")
	setString(meta, &cfg.Workspace.StateRoot, raw.Workspace.StateRoot, "workspace", "state_root")
	setString(meta, &cfg.Workspace.StatePattern, raw.Workspace.StatePattern, "workspace", "state_pattern")
	setString(meta, &cfg.Workspace.BuildContext, raw.Workspace.BuildContext, "workspace", "build_context")
	setString(meta, &cfg.Workspace.Dockerfile, raw.Workspace.Dockerfile, "workspace", "dockerfile")
	setString(meta, &cfg.Workspace.CacheContextDir, raw.Workspace.CacheContextDir, "workspace", "cache_context_dir")

	setString(meta, &cfg.Names.Prefix, raw.Names.Prefix, "names", "prefix")
	setString(meta, &cfg.Names.Image, raw.Names.Image, "names", "image")
	setString(meta, &cfg.Names.Proxy, raw.Names.Proxy, "names", "proxy")
	setString(meta, &cfg.Names.ProxyImage, raw.Names.ProxyImage, "names", "proxy_image")

	if meta.IsDefined("cache", "images") {
		cfg.Cache.Images = normalizeList(raw.Cache.Images)
	}
	if meta.IsDefined("cache", "dockerfile") {
		cfg.Cache.Dockerfile = raw.Cache.Dockerfile
	}
	if meta.IsDefined("bootstrap", "command") {
		cfg.Bootstrap.Command = normalizeList(raw.Bootstrap.Command)
	}
	setString(meta, &cfg.Runtime.Docker, raw.Runtime.Docker, "runtime", "docker")
	if meta.IsDefined("runtime", "compose") {
		cfg.Runtime.Compose = normalizeList(raw.Runtime.Compose)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if _, err := workspace.New(cfg.Workspace.Dir, cfg.Layout()); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Names.Prefix) == "" {
		return fmt.Errorf("names.prefix is required")
	}
	if strings.TrimSpace(cfg.Names.Image) == "" {
		return fmt.Errorf("names.image is required")
	}
	if strings.TrimSpace(cfg.Names.Proxy) == "" || strings.TrimSpace(cfg.Names.ProxyImage) == "" {
		return fmt.Errorf("names.proxy and names.proxy_image are required")
	}
	for i, image := range cfg.Cache.Images {
		if strings.TrimSpace(image) == "" {
			return fmt.Errorf("cache.images[%d] is empty", i)
		}
	}
	if len(cfg.Bootstrap.Command) == 0 {
		return fmt.Errorf("bootstrap.command is required")
	}
	if strings.Contains(cfg.Bootstrap.Command[0], "{") {
		return fmt.Errorf("bootstrap.command binary must not be a placeholder")
	}
	if strings.TrimSpace(cfg.Runtime.Docker) == "" {
		return fmt.Errorf("runtime.docker is required")
	}
	if len(cfg.Runtime.Compose) == 0 {
		return fmt.Errorf("runtime.compose is required")
	}
	return nil
}

func setString(meta toml.MetaData, dst *string, value string, key ...string) {
	if !meta.IsDefined(key...) {
		return
	}
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
