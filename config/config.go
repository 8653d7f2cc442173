// Package config loads tap suite configuration.
//
// A suite is described by a YAML file. Environment variables prefixed with
// AFB_TAP_ override the suite settings after the file is read, so a CI job
// can switch output or timeouts without editing the file. Tests may be
// declared in the file too; they are added to the suite by Apply.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/tap"
)

// Duration accepts either a number of seconds or a Go duration string.
type Duration time.Duration

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.InvalidInput(errors.PhaseConfig, "invalid duration "+strconv.Quote(s))
	}
	return Duration(d), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(s string) error {
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config describes a tap suite.
type Config struct {
	// UID names the suite and its progress event.
	UID string `yaml:"uid" env:"AFB_TAP_UID"`

	Info string `yaml:"info" env:"AFB_TAP_INFO"`

	// Timeout is the suite default test timeout.
	Timeout Duration `yaml:"timeout" env:"AFB_TAP_TIMEOUT"`

	Autorun  bool `yaml:"autorun" env:"AFB_TAP_AUTORUN"`
	Autoexit bool `yaml:"autoexit" env:"AFB_TAP_AUTOEXIT"`

	// Output is one of tap, json or none.
	Output string `yaml:"output" env:"AFB_TAP_OUTPUT"`

	// ExitOnFailure makes autoexit return 1 when a test failed.
	ExitOnFailure bool `yaml:"exit_on_failure" env:"AFB_TAP_EXIT_ON_FAILURE"`

	// Tests are added to the autostart group.
	Tests []TestConfig `yaml:"tests,omitempty"`

	Groups []GroupConfig `yaml:"groups,omitempty"`
}

// GroupConfig declares a test group.
type GroupConfig struct {
	UID     string       `yaml:"uid"`
	Info    string       `yaml:"info"`
	Timeout Duration     `yaml:"timeout"`
	Tests   []TestConfig `yaml:"tests"`
}

// TestConfig declares one verb call and its expectations.
type TestConfig struct {
	UID       string   `yaml:"uid"`
	Info      string   `yaml:"info"`
	API       string   `yaml:"api"`
	Verb      string   `yaml:"verb"`
	Args      []any    `yaml:"args"`
	Expect    []any    `yaml:"expect"`
	Mode      string   `yaml:"mode"`
	Status    int      `yaml:"status"`
	Timeout   Duration `yaml:"timeout"`
	Delay     Duration `yaml:"delay"`
	OnSuccess string   `yaml:"on_success"`
	OnError   string   `yaml:"on_error"`
}

// Default returns the configuration of a suite with no file.
func Default() *Config {
	return &Config{
		UID:      "tap-test",
		Timeout:  Duration(tap.DefaultTimeout),
		Autorun:  true,
		Autoexit: true,
		Output:   tap.OutputTAP.String(),
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode yaml")
	}
	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv applies AFB_TAP_* environment overrides. Unset variables leave
// the current values alone.
func (c *Config) FromEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode environment")
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.UID == "" {
		return errors.InvalidInput(errors.PhaseConfig, "uid is required")
	}
	if _, err := tap.ParseOutput(c.Output); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "timeout must not be negative")
	}

	seen := map[string]bool{tap.Autostart: true}
	for _, g := range c.Groups {
		if g.UID == "" || seen[g.UID] {
			return errors.AlreadyExists(errors.PhaseConfig, "group", g.UID)
		}
		seen[g.UID] = true
	}
	check := func(group string, tests []TestConfig) error {
		for i, t := range tests {
			if t.UID == "" || t.API == "" || t.Verb == "" {
				return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
					Path(group, strconv.Itoa(i)).
					Detail("test requires uid, api and verb").
					Build()
			}
			for _, label := range []string{t.OnSuccess, t.OnError} {
				if label != "" && !seen[label] {
					return errors.NotFound(errors.PhaseConfig, "group", label)
				}
			}
			switch t.Mode {
			case "", "auto", "full", "partial":
			default:
				return errors.InvalidInput(errors.PhaseConfig, "unknown expect mode "+t.Mode)
			}
		}
		return nil
	}
	if err := check(tap.Autostart, c.Tests); err != nil {
		return err
	}
	for _, g := range c.Groups {
		if err := check(g.UID, g.Tests); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the settings to s and adds the declared tests and groups.
func (c *Config) Apply(s *tap.Suite) error {
	out, err := tap.ParseOutput(c.Output)
	if err != nil {
		return err
	}
	s.SetInfo(c.Info).
		SetTimeout(c.Timeout.Std()).
		SetAutorun(c.Autorun).
		SetAutoexit(c.Autoexit).
		SetOutput(out).
		SetExitOnFailure(c.ExitOnFailure)

	for _, tc := range c.Tests {
		t, err := tc.Build()
		if err != nil {
			return err
		}
		s.AddTest(t)
	}
	for _, gc := range c.Groups {
		g := tap.NewGroup(gc.UID).SetInfo(gc.Info).SetTimeout(gc.Timeout.Std())
		for _, tc := range gc.Tests {
			t, err := tc.Build()
			if err != nil {
				return err
			}
			g.AddTest(t)
		}
		s.AddGroup(g)
	}
	return nil
}

// Build creates the tap test. Object and array arguments are passed as
// JSON cells, scalars keep their native type.
func (tc TestConfig) Build() (*tap.Test, error) {
	t := tap.NewTest(tc.UID, tc.API, tc.Verb).
		SetInfo(tc.Info).
		SetStatus(tc.Status).
		SetTimeout(tc.Timeout.Std()).
		SetDelay(tc.Delay.Std()).
		SetOnSuccess(tc.OnSuccess).
		SetOnError(tc.OnError)

	for i, v := range tc.Args {
		arg, err := argValue(v)
		if err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Path(tc.UID, errors.ArgPath(i)).
				Cause(err).
				Build()
		}
		t.AddArg(arg)
	}

	for i, v := range tc.Expect {
		doc, err := jsonc.From(v)
		if err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Path(tc.UID, "expect", strconv.Itoa(i)).
				Cause(err).
				Build()
		}
		switch tc.Mode {
		case "full":
			t.AddExpectFull(doc)
		case "partial":
			t.AddExpectPartial(doc)
		default:
			t.AddExpect(doc)
		}
	}
	return t, nil
}

func argValue(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return jsonc.Raw(data), nil
	case int:
		return int64(v), nil
	case nil:
		return jsonc.Raw("null"), nil
	}
	return v, nil
}
