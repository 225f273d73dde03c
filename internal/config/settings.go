package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Environment variables read by Load and Resolve.
const (
	EnvMarimoPath    = "JUPYTERMARIMOPROXY_MARIMO_PATH"
	EnvUvxPath       = "JUPYTERMARIMOPROXY_UVX_PATH"
	EnvTimeout       = "JUPYTERMARIMOPROXY_TIMEOUT"
	EnvServicePrefix = "JUPYTERHUB_SERVICE_PREFIX"
	EnvUV            = "UV" // set by uv itself; last resort for the runner path

	EnvPort         = "JUPYTERMARIMOPROXY_PORT"
	EnvToken        = "JUPYTERMARIMOPROXY_TOKEN"
	EnvHubToken     = "JUPYTERHUB_API_TOKEN"
	EnvLogLevel     = "JUPYTERMARIMOPROXY_LOG_LEVEL"
	EnvUpstreamPort = "JUPYTERMARIMOPROXY_UPSTREAM_PORT"
	EnvUpstreamAddr = "JUPYTERMARIMOPROXY_UPSTREAM_ADDR"
	EnvOverridePath = "JUPYTERMARIMOPROXY_CONFIG"
	EnvMetricsAddr  = "JUPYTERMARIMOPROXY_METRICS_ADDR"
)

const (
	// DefaultTimeout is the marimo startup timeout in seconds.
	DefaultTimeout = 60
	// DefaultBaseURL is where marimo is mounted without a service prefix.
	DefaultBaseURL = "/marimo"
	// DeprecatedRCFile lives in the user's home directory and is ignored
	// apart from a warning.
	DeprecatedRCFile = ".jupytermarimoproxyrc"
)

// Settings is the resolved marimo configuration. The zero value is not
// useful; build one with Resolve or NewSettings. Fields cannot be changed
// after construction.
type Settings struct {
	marimoPath string
	uvxPath    string
	timeout    int
	baseURL    string
}

// NewSettings builds Settings from explicit values. Empty paths mean absent;
// a non-positive timeout becomes DefaultTimeout and an empty baseURL becomes
// DefaultBaseURL.
func NewSettings(marimoPath, uvxPath string, timeout int, baseURL string) Settings {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Settings{
		marimoPath: marimoPath,
		uvxPath:    uvxPath,
		timeout:    timeout,
		baseURL:    baseURL,
	}
}

// MarimoPath is the explicitly configured marimo executable, or "".
func (s Settings) MarimoPath() string { return s.marimoPath }

// UvxPath is the explicitly configured runner executable, or "".
func (s Settings) UvxPath() string { return s.uvxPath }

// Timeout is the marimo startup timeout in seconds.
func (s Settings) Timeout() int { return s.timeout }

// BaseURL is the path marimo is served under.
func (s Settings) BaseURL() string { return s.baseURL }

// Override holds values that take precedence over the environment. A nil
// field is unset.
type Override struct {
	MarimoPath *string `toml:"marimo_path"`
	UvxPath    *string `toml:"uvx_path"`
	Timeout    *int    `toml:"timeout"`
}

// Resolver turns an Override plus the environment into Settings. The zero
// value reads the real environment and logs deprecation warnings through
// zerolog.
type Resolver struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
	Warn    func(msg string)
}

// Resolve uses a zero Resolver.
func Resolve(o *Override) Settings {
	return Resolver{}.Resolve(o)
}

// Resolve builds Settings. Each field is taken from o when set, else from the
// environment, else from the built-in default.
func (r Resolver) Resolve(o *Override) Settings {
	r.warnDeprecatedRC()

	if o == nil {
		o = &Override{}
	}

	marimoPath := r.getenv(EnvMarimoPath)
	if o.MarimoPath != nil {
		marimoPath = *o.MarimoPath
	}

	uvxPath := r.getenv(EnvUvxPath)
	if uvxPath == "" {
		uvxPath = r.getenv(EnvUV)
	}
	if o.UvxPath != nil {
		uvxPath = *o.UvxPath
	}

	timeout := DefaultTimeout
	if raw := r.getenv(EnvTimeout); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			timeout = n
		}
	}
	if o.Timeout != nil && *o.Timeout > 0 {
		timeout = *o.Timeout
	}

	return NewSettings(marimoPath, uvxPath, timeout, BaseURLFor(r.getenv(EnvServicePrefix)))
}

// BaseURLFor joins a service prefix with the marimo segment.
// "/user/alice/" becomes "/user/alice/marimo"; an empty prefix gives
// DefaultBaseURL.
func BaseURLFor(prefix string) string {
	if prefix == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(prefix, "/") + DefaultBaseURL
}

func (r Resolver) warnDeprecatedRC() {
	homeDir := r.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	home, err := homeDir()
	if err != nil || home == "" {
		return
	}
	path := filepath.Join(home, DeprecatedRCFile)
	if _, err := os.Stat(path); err != nil {
		return
	}

	msg := "~/" + DeprecatedRCFile + " is deprecated and ignored; use " +
		EnvMarimoPath + ", " + EnvUvxPath + " or an override file instead"
	if r.Warn != nil {
		r.Warn(msg)
		return
	}
	log.Warn().Str("path", path).Msg(msg)
}

func (r Resolver) getenv(key string) string {
	if r.Getenv != nil {
		return r.Getenv(key)
	}
	return os.Getenv(key)
}
