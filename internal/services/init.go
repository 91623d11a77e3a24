package services

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stt/internal/config"
	"github.com/conneroisu/stt/internal/errors"
)

// ConfigFileName is the project configuration file written by init.
const ConfigFileName = ".stt.yml"

// InitService handles project initialization business logic
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Minimal skips the example templates.
	Minimal bool
	// Force overwrites an existing configuration file.
	Force bool
}

// InitProject lays out a new stt project: a configuration file, a
// templates directory and, unless Minimal is set, example templates.
func (s *InitService) InitProject(opts InitOptions) error {
	if err := os.MkdirAll(opts.ProjectDir, 0o755); err != nil {
		return errors.NewIOError("", "creating project directory", err).WithContext("dir", opts.ProjectDir)
	}

	if err := s.createDirectoryStructure(opts.ProjectDir); err != nil {
		return err
	}

	if err := s.createConfigFile(opts.ProjectDir, opts.Force); err != nil {
		return err
	}

	if !opts.Minimal {
		if err := s.createExampleTemplates(opts.ProjectDir); err != nil {
			return err
		}
	}

	return nil
}

func (s *InitService) createDirectoryStructure(projectDir string) error {
	for _, dir := range []string{"templates", "templates/shared", ".stt"} {
		dirPath := filepath.Join(projectDir, dir)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return errors.NewIOError("", fmt.Sprintf("creating directory %s", dir), err)
		}
	}
	return nil
}

// DefaultProjectConfig is the configuration written by init.
func DefaultProjectConfig() *config.Config {
	return &config.Config{
		Templates: config.TemplatesConfig{
			BaseDir:    "templates",
			Extensions: append([]string(nil), config.DefaultExtensions...),
			Provenance: true,
		},
		Backend: config.BackendConfig{
			GoBinary:  config.DefaultGoBinary,
			Timeout:   config.DefaultTimeout,
			CacheDir:  config.DefaultCacheDir,
			CacheSize: config.DefaultCacheSize,
			Jobs:      4,
		},
		Registry: config.RegistryConfig{Snapshot: config.DefaultSnapshot},
		Watch: config.WatchConfig{
			Debounce: config.DefaultDebounce,
			Paths:    []string{"templates"},
			Ignore:   []string{".git", ".stt"},
		},
		Log: config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
	}
}

func (s *InitService) createConfigFile(projectDir string, force bool) error {
	path := filepath.Join(projectDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewConfigurationError("config_exists", fmt.Sprintf("%s already exists", path))
	}

	data, err := yaml.Marshal(DefaultProjectConfig())
	if err != nil {
		return errors.NewIOError("", "encoding configuration", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError("", "writing configuration", err).WithContext("path", path)
	}
	return nil
}

var exampleTemplates = map[string]string{
	"templates/hello.txt.tt": `<#@ template language="Go" #>
<#@ include file="shared/header.tt" #>
Hello, <#= Name #>!
<# for i := 1; i <= Count; i++ { #>
  line <#= i #>
<# } #>
<#@ property name="Name" type="string" #>
<#@ property name="Count" type="int" #>
`,
	"templates/shared/header.tt": `<#-- included by hello.txt.tt --#>
Generated by stt
`,
	"templates/report.md.tt": `<#@ import namespace="strings" #>
# <#= title("report") #>
<#+
func title(s string) string { return strings.ToUpper(s[:1]) + s[1:] }
#>
`,
}

func (s *InitService) createExampleTemplates(projectDir string) error {
	for name, content := range exampleTemplates {
		path := filepath.Join(projectDir, filepath.FromSlash(name))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return errors.NewIOError("", "writing example template", err).WithContext("path", path)
		}
	}
	return nil
}
