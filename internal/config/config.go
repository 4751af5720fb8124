package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codescan-io/codescan/internal/qualitygate"
	"github.com/codescan-io/codescan/internal/scanner"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	QualityGate QualityGateConfig `mapstructure:"qualitygate"`
	NoFail      bool              `mapstructure:"nofail"`
}

type ServerConfig struct {
	URL          string `mapstructure:"url"`
	Organization string `mapstructure:"organization"`
	ProjectKey   string `mapstructure:"project_key"`
}

type AuthConfig struct {
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ScannerConfig struct {
	JavaHome string `mapstructure:"java_home"`
	Jar      string `mapstructure:"jar"`
	Path     string `mapstructure:"path"`
	WorkDir  string `mapstructure:"working_dir"`
}

type QualityGateConfig struct {
	Disabled     bool          `mapstructure:"disabled"`
	Timeout      int           `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

var cfg *Config

// Init loads the configuration file, environment and bound flags of v into
// the package configuration. An empty cfgFile means
// ~/.config/codescan/config.yaml when present.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "codescan"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	_ = v.BindEnv("server.url", "CODESCAN_SERVER")
	_ = v.BindEnv("server.organization", "CODESCAN_ORGANIZATION")
	_ = v.BindEnv("server.project_key", "CODESCAN_PROJECT_KEY")
	_ = v.BindEnv("auth.token", "CODESCAN_TOKEN")
	_ = v.BindEnv("auth.username", "CODESCAN_USERNAME")
	_ = v.BindEnv("auth.password", "CODESCAN_PASSWORD")
	_ = v.BindEnv("scanner.java_home", "JAVA_HOME")
	_ = v.BindEnv("scanner.jar", "CODESCAN_SCANNER_JAR")
	_ = v.BindEnv("scanner.path", "CODESCAN_SCANNER")

	v.SetDefault("qualitygate.timeout", int(qualitygate.DefaultTimeout/time.Second))
	v.SetDefault("qualitygate.poll_interval", qualitygate.DefaultPollInterval)

	if err := v.ReadInConfig(); err != nil {
		// no config file is fine unless one was asked for explicitly
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	cfg = c
	return nil
}

func Get() *Config {
	if cfg == nil {
		if err := Init(viper.New(), ""); err != nil {
			cfg = &Config{}
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	if u := c.Server.URL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("server url must start with http:// or https://, got %q", u)
	}
	if c.QualityGate.Timeout < 0 {
		return fmt.Errorf("quality gate timeout must not be negative, got %d", c.QualityGate.Timeout)
	}
	if c.Scanner.Path == "" && c.Scanner.Jar == "" {
		return fmt.Errorf("scanner required. Set via --scanner, --scanner-jar, CODESCAN_SCANNER, CODESCAN_SCANNER_JAR or config file")
	}
	return nil
}

func (c *Config) GetQualityGateTimeout() time.Duration {
	if c.QualityGate.Timeout > 0 {
		return time.Duration(c.QualityGate.Timeout) * time.Second
	}
	return qualitygate.DefaultTimeout
}

func (c *Config) GetPollInterval() time.Duration {
	if c.QualityGate.PollInterval > 0 {
		return c.QualityGate.PollInterval
	}
	return qualitygate.DefaultPollInterval
}

// GetJava returns the java executable: <java_home>/bin/java when a java home
// is configured, java from PATH otherwise.
func (c *Config) GetJava() string {
	if c.Scanner.JavaHome != "" {
		return filepath.Join(c.Scanner.JavaHome, "bin", "java")
	}
	if path, err := exec.LookPath("java"); err == nil {
		return path
	}
	return "java"
}

// GetWorkDir returns the configured scanner working directory or
// <user cache dir>/codescan/sonarworker.
func (c *Config) GetWorkDir() string {
	if c.Scanner.WorkDir != "" {
		return c.Scanner.WorkDir
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "codescan", "sonarworker")
}

func (c *Config) Credentials() qualitygate.Credentials {
	return qualitygate.Credentials{
		Token:    c.Auth.Token,
		Username: c.Auth.Username,
		Password: c.Auth.Password,
	}
}

// ArgsConfig maps the configuration onto the scanner command line settings.
func (c *Config) ArgsConfig() scanner.ArgsConfig {
	ac := scanner.ArgsConfig{
		Jar:            c.Scanner.Jar,
		Scanner:        c.Scanner.Path,
		ServerURL:      c.Server.URL,
		Organization:   c.Server.Organization,
		ProjectKey:     c.Server.ProjectKey,
		Credentials:    c.Credentials(),
		DefaultWorkDir: c.GetWorkDir(),
	}
	if ac.Scanner == "" {
		ac.Java = c.GetJava()
	}
	return ac
}

func (c *Config) Options() scanner.Options {
	return scanner.Options{
		NoFail:             c.NoFail,
		NoQualityGate:      c.QualityGate.Disabled,
		QualityGateTimeout: c.GetQualityGateTimeout(),
	}
}
