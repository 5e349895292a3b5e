package cmd

import (
	"os"
	"path/filepath"

	"milc/report"

	"github.com/pelletier/go-toml"
	env "github.com/xyproto/env/v2"
)

// BuildProfile is the resolved build configuration of one compilation: the
// manifest values of milc.toml with environment overrides applied.
type BuildProfile struct {
	// Name is the compilation unit's name, used for the output module.
	Name string

	OutputPath string

	// LogLevel is one of silent, error, warn, or verbose.
	LogLevel string

	// NoOpt disables the optimization pipeline.
	NoOpt bool

	// MaxRounds bounds the optimizer's fixpoint iteration.
	MaxRounds int
}

// manifest mirrors the layout of milc.toml.
type manifest struct {
	Unit struct {
		Name   string `toml:"name"`
		Output string `toml:"output"`
	} `toml:"unit"`

	Build struct {
		LogLevel  string `toml:"log-level"`
		NoOpt     bool   `toml:"no-opt"`
		MaxRounds int    `toml:"max-rounds"`
	} `toml:"build"`
}

// LoadProfile reads the build profile from the manifest in dir, falling back
// to defaults when no manifest exists, then applies environment overrides
// (MILC_LOG_LEVEL, MILC_NO_OPT, MILC_MAX_ROUNDS).
func LoadProfile(dir string) *BuildProfile {
	// env caches the environment on first use; refresh it so variables set
	// after process start are seen
	env.Load()

	p := &BuildProfile{
		Name:     filepath.Base(dir),
		LogLevel: "warn",
	}

	path := filepath.Join(dir, "milc.toml")
	if data, err := os.ReadFile(path); err == nil {
		var m manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			report.ICE("malformed manifest %s: %s", path, err.Error())
		}

		if m.Unit.Name != "" {
			p.Name = m.Unit.Name
		}

		p.OutputPath = m.Unit.Output

		if m.Build.LogLevel != "" {
			p.LogLevel = m.Build.LogLevel
		}

		p.NoOpt = m.Build.NoOpt
		p.MaxRounds = m.Build.MaxRounds
	}

	p.LogLevel = env.Str("MILC_LOG_LEVEL", p.LogLevel)
	p.NoOpt = env.Bool("MILC_NO_OPT") || p.NoOpt
	p.MaxRounds = env.Int("MILC_MAX_ROUNDS", p.MaxRounds)

	return p
}

// logLevel translates the profile's log level to the reporter's.
func (p *BuildProfile) logLevel() int {
	switch p.LogLevel {
	case "silent":
		return report.LogLevelSilent
	case "error":
		return report.LogLevelError
	case "verbose":
		return report.LogLevelVerbose
	default:
		return report.LogLevelWarn
	}
}
