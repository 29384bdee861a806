package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535

	MinProjectNameLen = 2
	MaxProjectNameLen = 64
)

var (
	projectNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)
	// PEP 508 package names: letters, digits, and single . _ - separators
	packageNameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)
	// Anything after the name is a version specifier, passed through to pip
	versionSpecChars = ">=<!~"
)

// ValidationError accumulates every problem found in a config so the
// user can fix them in one pass
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, msg := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(msg)
	}
	return b.String()
}

// Add records a validation failure
func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

// HasErrors reports whether any failures were recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the config for semantic errors
func (c *Config) Validate() error {
	errs := &ValidationError{}
	c.checkProject(errs)
	c.checkVenv(errs)
	c.checkEntrypoint(errs)
	c.checkPackages(errs)
	c.checkApp(errs)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c *Config) checkProject(errs *ValidationError) {
	if c.Project == "" {
		errs.Add("project is required")
		return
	}
	if n := len(c.Project); n < MinProjectNameLen || n > MaxProjectNameLen {
		errs.Add(fmt.Sprintf("project must be between %d and %d characters", MinProjectNameLen, MaxProjectNameLen))
	}
	if !projectNameRe.MatchString(c.Project) {
		errs.Add("project must start with a letter and contain only letters, digits, or hyphens")
	}
}

func (c *Config) checkVenv(errs *ValidationError) {
	if c.Venv == "" {
		errs.Add("venv is required")
		return
	}
	if filepath.IsAbs(c.Venv) {
		errs.Add("venv must be a relative path inside the project")
	}
	if c.Venv == "." || strings.Contains(c.Venv, "..") {
		errs.Add("venv cannot point outside the project directory")
	}
}

func (c *Config) checkEntrypoint(errs *ValidationError) {
	if c.Entrypoint == "" {
		errs.Add("entrypoint is required")
		return
	}
	if filepath.IsAbs(c.Entrypoint) {
		errs.Add("entrypoint must be a relative path inside the project")
	}
}

func (c *Config) checkPackages(errs *ValidationError) {
	if len(c.Packages) == 0 {
		errs.Add("at least one package is required")
		return
	}
	for _, req := range c.Packages {
		name := packageName(req)
		if name == "" || !packageNameRe.MatchString(name) {
			errs.Add(fmt.Sprintf("invalid package name: %q", req))
		}
	}
}

func (c *Config) checkApp(errs *ValidationError) {
	if c.App.Host == "" {
		errs.Add("app.host is required")
	}
	if c.App.Port < MinPort || c.App.Port > MaxPort {
		errs.Add(fmt.Sprintf("app.port must be between %d and %d", MinPort, MaxPort))
	}
}

// packageName returns the distribution name part of a requirement
// string, stripping any version specifier
func packageName(req string) string {
	if i := strings.IndexAny(req, versionSpecChars); i >= 0 {
		return strings.TrimSpace(req[:i])
	}
	return strings.TrimSpace(req)
}

// Warnings reports non-fatal config smells, the kind Validate lets
// through but a careful operator would want surfaced
func (c *Config) Warnings() []string {
	var ws []string
	for _, req := range c.Packages {
		if strings.ContainsAny(req, versionSpecChars) {
			continue
		}
		ws = append(ws, fmt.Sprintf("package %q has no version pin, installs will drift over time", req))
	}
	if c.Entrypoint != "" && !strings.HasSuffix(c.Entrypoint, ".py") {
		ws = append(ws, fmt.Sprintf("entrypoint %q does not look like a python script", c.Entrypoint))
	}
	return ws
}

// LoadAndValidate reads the config and rejects anything Validate would
// flag, so callers get a config that is safe to act on
func LoadAndValidate(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
