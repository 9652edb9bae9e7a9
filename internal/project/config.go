package project

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"piecemeal/internal/analyze"
	"piecemeal/internal/decl"
	"piecemeal/internal/naming"
	"piecemeal/internal/synth"
)

// ErrInvalidConfig wraps every validation failure of piecemeal.toml.
var ErrInvalidConfig = errors.New("invalid piecemeal.toml")

// GenerateConfig is the [generate] section.
type GenerateConfig struct {
	Output        string `toml:"output"`
	SetterStyle   string `toml:"setter_style"`
	InlinePrefix  string `toml:"inline_prefix"`
	BuilderSuffix string `toml:"builder_suffix"`
	ToBuilder     bool   `toml:"to_builder"`
}

// DefaultsConfig is the [defaults] section.
type DefaultsConfig struct {
	Policy string `toml:"policy"`
}

// TypesConfig is the [types] section: kinds added to or removed from the
// supported parameter types.
type TypesConfig struct {
	Allow []string `toml:"allow"`
	Deny  []string `toml:"deny"`
}

// Config is the decoded piecemeal.toml. Keys absent from the file keep
// their default values.
type Config struct {
	Generate GenerateConfig `toml:"generate"`
	Defaults DefaultsConfig `toml:"defaults"`
	Types    TypesConfig    `toml:"types"`

	// Path is the file the config was read from, "" for defaults.
	Path string `toml:"-"`
}

// Default returns the configuration used when no piecemeal.toml exists.
func Default() Config {
	scheme := naming.DefaultScheme()
	return Config{
		Generate: GenerateConfig{
			Output:        "piecemeal_gen.go",
			SetterStyle:   scheme.Style.String(),
			InlinePrefix:  scheme.InlinePrefix,
			BuilderSuffix: scheme.BuilderSuffix,
			ToBuilder:     true,
		},
		Defaults: DefaultsConfig{Policy: synth.PolicyDeclared.String()},
		Types:    TypesConfig{Allow: []string{}, Deny: []string{}},
	}
}

// Load decodes and validates the file at path.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalidConfig, strings.Join(keys, ", "))
	}
	if meta.IsDefined("generate", "output") && strings.TrimSpace(cfg.Generate.Output) == "" {
		return Config{}, fmt.Errorf("%s: %w: [generate].output must not be empty", path, ErrInvalidConfig)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads piecemeal.toml found upward from startDir, or returns the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := FindConfig(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks values that decoding alone cannot.
func (c Config) Validate() error {
	if _, err := naming.ParseSetterStyle(c.Generate.SetterStyle); err != nil {
		return fmt.Errorf("%w: [generate].setter_style: %v", ErrInvalidConfig, err)
	}
	out := c.Generate.Output
	if out == "" || filepath.Base(out) != out || !strings.HasSuffix(out, ".go") || strings.HasSuffix(out, "_test.go") {
		return fmt.Errorf("%w: [generate].output %q must be a non-test .go file name without directories", ErrInvalidConfig, out)
	}
	if c.Generate.InlinePrefix == "" || !token.IsExported(c.Generate.InlinePrefix) {
		return fmt.Errorf("%w: [generate].inline_prefix %q must be an exported identifier prefix", ErrInvalidConfig, c.Generate.InlinePrefix)
	}
	if c.Generate.BuilderSuffix == "" {
		return fmt.Errorf("%w: [generate].builder_suffix must not be empty", ErrInvalidConfig)
	}
	if _, err := synth.ParseDefaultPolicy(c.Defaults.Policy); err != nil {
		return fmt.Errorf("%w: [defaults].policy: %v", ErrInvalidConfig, err)
	}
	allow, err := parseKinds("allow", c.Types.Allow)
	if err != nil {
		return err
	}
	deny, err := parseKinds("deny", c.Types.Deny)
	if err != nil {
		return err
	}
	for _, k := range allow {
		if slices.Contains(deny, k) {
			return fmt.Errorf("%w: [types] kind %q is both allowed and denied", ErrInvalidConfig, k)
		}
	}
	return nil
}

func parseKinds(key string, names []string) ([]decl.TypeKind, error) {
	out := make([]decl.TypeKind, 0, len(names))
	for _, name := range names {
		k, ok := decl.ParseTypeKind(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: [types].%s: unknown kind %q", ErrInvalidConfig, key, name)
		}
		out = append(out, k)
	}
	return out, nil
}

// Analyzer returns the analyzer configuration. The config must be valid.
func (c Config) Analyzer() analyze.Config {
	style, _ := naming.ParseSetterStyle(c.Generate.SetterStyle)
	allow, _ := parseKinds("allow", c.Types.Allow)
	deny, _ := parseKinds("deny", c.Types.Deny)
	return analyze.Config{
		Types: analyze.DefaultTypeSet().With(allow, deny),
		Scheme: naming.Scheme{
			Style:         style,
			BuilderSuffix: c.Generate.BuilderSuffix,
			InlinePrefix:  c.Generate.InlinePrefix,
		},
		ToBuilder: c.Generate.ToBuilder,
	}
}

// Policy returns the default policy. The config must be valid.
func (c Config) Policy() synth.DefaultPolicy {
	p, _ := synth.ParseDefaultPolicy(c.Defaults.Policy)
	return p
}

// Encode renders c as TOML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# piecemeal configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrConfigExists is returned by Init when the directory already has a config.
var ErrConfigExists = errors.New("piecemeal.toml already exists")

// Init writes the default configuration into dir and returns its path.
func Init(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s: %w", path, ErrConfigExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat %q: %w", path, err)
	}
	data, err := Default().Encode()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
