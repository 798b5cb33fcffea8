package application

import (
	"github.com/ESN-MoRe/members-manager/internal/drupal/browser"
	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/sessioncache"
	"github.com/ESN-MoRe/members-manager/lib/configutil"
	"github.com/ESN-MoRe/members-manager/lib/telemetry"
)

type BrowserConfig struct {
	ExecutablePath string `json:"executable_path" envconfig:"BROWSER_EXECUTABLE_PATH"`
	// Headless defaults to true.
	Headless             *bool `json:"headless,omitempty" envconfig:"BROWSER_HEADLESS"`
	StepTimeoutSeconds   int   `json:"step_timeout_seconds"`
	UploadTimeoutSeconds int   `json:"upload_timeout_seconds"`
	MinListedFiles       int   `json:"min_listed_files"`
}

func (c BrowserConfig) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

type DrupalConfig struct {
	BaseUrl         string `json:"base_url"`
	LoginPath       string `json:"login_path"`
	ContentPath     string `json:"content_path"`
	ImcePath        string `json:"imce_path"`
	ContentSelector string `json:"content_selector"`

	Username string `json:"username" envconfig:"DRUPAL_USERNAME"`
	Password string `json:"password" envconfig:"DRUPAL_PASSWORD"`

	// ReloginOnRetry defaults to true.
	ReloginOnRetry        *bool   `json:"relogin_on_retry,omitempty"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds"`
	RequestsPerSecond     float64 `json:"requests_per_second"`

	Browser BrowserConfig `json:"browser"`
}

func (c DrupalConfig) ShouldReloginOnRetry() bool {
	return c.ReloginOnRetry == nil || *c.ReloginOnRetry
}

type ServerConfig struct {
	Port       int    `json:"port" envconfig:"PORT"`
	UploadDir  string `json:"upload_dir"`
	StagingDir string `json:"staging_dir"`
}

type Config struct {
	Drupal    DrupalConfig         `json:"drupal"`
	Cache     sessioncache.Options `json:"cache"`
	Server    ServerConfig         `json:"server"`
	Telemetry telemetry.Config     `json:"telemetry"`
}

func Defaults() Config {
	return Config{
		Drupal: DrupalConfig{
			BaseUrl:               content.DefaultBaseUrl,
			LoginPath:             browser.DefaultLoginPath,
			ContentPath:           content.DefaultContentPath,
			ImcePath:              browser.DefaultImcePath,
			ContentSelector:       content.DefaultSelector,
			RequestTimeoutSeconds: 30,
			RequestsPerSecond:     2,
			Browser: BrowserConfig{
				StepTimeoutSeconds:   30,
				UploadTimeoutSeconds: 15,
				MinListedFiles:       50,
			},
		},
		Cache: sessioncache.Options{
			Backend:           sessioncache.BackendMemory,
			Prefix:            sessioncache.DefaultPrefix,
			BadgerPath:        ".data/cache",
			SQLiteDSN:         ".data/cache.db",
			SessionTTLMinutes: 120,
			ContentTTLMinutes: 60,
		},
		Server: ServerConfig{
			Port:       3000,
			UploadDir:  "public/members-img",
			StagingDir: ".data/staging",
		},
	}
}

// LoadConfig reads the config file at path (plus its .local overlay) over the
// defaults, then applies environment variables.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadOrDefault(path, Defaults())
	if err != nil {
		return Config{}, err
	}
	err = configutil.ApplyEnv("", &cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
