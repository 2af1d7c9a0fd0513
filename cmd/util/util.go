package util

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/common"
	"github.com/mediamanager/mstore/lib/db"
	"github.com/mediamanager/mstore/lib/db/engines"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/mediamanager/mstore/lib/store/cache"
	"github.com/mediamanager/mstore/lib/store/lstore"
	"github.com/mediamanager/mstore/lib/store/rstore"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var Logger = logger.GetLogger("cmd")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupClientFlags adds the flags shared by all commands
func SetupClientFlags(cmd *cobra.Command) {
	key := "origin"
	cmd.PersistentFlags().String(key, "", WrapString("Origin of the remote media service (e.g. http://localhost:8080). Empty means offline"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a remote request (0 = no timeout)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("Directory of the local store. Empty keeps the local store in memory only"))

	key = "engine"
	cmd.PersistentFlags().String(key, string(db.ImplPebble), WrapString(fmt.Sprintf("Engine of the local store, one of %v", db.Implementations)))

	key = "codec"
	cmd.PersistentFlags().String(key, "json", WrapString("Codec used for local records (json, gob, yaml)"))

	key = "sync-interval"
	cmd.PersistentFlags().Int(key, 30, WrapString("Seconds between two sync runs in loop mode"))

	key = "sync-policy"
	cmd.PersistentFlags().String(key, "prune", WrapString("What a sync does with local records the remote does not know: prune drops them, share pushes them"))

	key = "coherency"
	cmd.PersistentFlags().String(key, "write-through", WrapString("Write mode of the cache: write-through or write-back"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the collected metrics in Prometheus text format after the command"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("mstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Origin:             viper.GetString("origin"),
		TimeoutSecond:      viper.GetInt("timeout"),
		DataDir:            viper.GetString("data-dir"),
		Engine:             viper.GetString("engine"),
		Codec:              viper.GetString("codec"),
		SyncIntervalSecond: viper.GetInt("sync-interval"),
		SyncPolicy:         viper.GetString("sync-policy"),
		Coherency:          viper.GetString("coherency"),
		LogLevel:           viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Stores
// --------------------------------------------------------------------------

// Env opens the stores a command needs on first use and closes them at the end.
type Env struct {
	Conf     *common.ClientConfig
	Registry gometrics.Registry

	mu     sync.Mutex
	local  *lstore.Store
	remote *rstore.Store
}

// ErrOffline is returned when a command needs the remote but no origin is configured.
var ErrOffline = errors.New("no remote configured (set --origin or MSTORE_ORIGIN)")

// NewEnv creates an environment for conf. Nothing is opened yet.
func NewEnv(conf *common.ClientConfig) *Env {
	return &Env{Conf: conf, Registry: gometrics.NewRegistry()}
}

// Local opens the local store.
func (e *Env) Local() (*lstore.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.local != nil {
		return e.local, nil
	}

	impl := db.Implementation(e.Conf.Engine)
	s, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		return engines.Open(impl, e.Conf.DataDir)
	})
	if err != nil {
		return nil, err
	}
	Logger.Debugf("opened local store (%s) in %q", impl, e.Conf.DataDir)
	e.local = s
	return s, nil
}

// Remote creates the remote store client.
func (e *Env) Remote() (*rstore.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remote != nil {
		return e.remote, nil
	}
	if e.Conf.Offline() {
		return nil, ErrOffline
	}

	s, err := rstore.New(rstore.Options{
		Origin:   e.Conf.Origin,
		Timeout:  e.Conf.Timeout(),
		Registry: e.Registry,
	})
	if err != nil {
		return nil, err
	}
	e.remote = s
	return s, nil
}

// Cache layers the local store over the remote with the configured coherency.
func (e *Env) Cache() (*cache.Cache, error) {
	mode, err := cache.ParseCoherency(e.Conf.Coherency)
	if err != nil {
		return nil, err
	}
	local, err := e.Local()
	if err != nil {
		return nil, err
	}
	remote, err := e.Remote()
	if err != nil {
		return nil, err
	}
	return cache.New(local, remote, mode), nil
}

// Store returns the store selected by the --remote and --cache flags of a command.
func (e *Env) Store(remote, cached bool) (store.IStore, error) {
	switch {
	case cached:
		return e.Cache()
	case remote:
		return e.Remote()
	default:
		return e.Local()
	}
}

// Close closes the local store if it was opened.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.local == nil {
		return nil
	}
	err := e.local.Close()
	e.local = nil
	return err
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// PrintYAML writes v as YAML.
func PrintYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// --------------------------------------------------------------------------
// Current environment
// --------------------------------------------------------------------------

var (
	currentMu sync.Mutex
	current   *Env
)

// SetEnv installs the environment of the running command.
func SetEnv(e *Env) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = e
}

// CurrentEnv returns the environment of the running command. It fails if the root
// command did not set one up.
func CurrentEnv() (*Env, error) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current == nil {
		return nil, errors.New("command environment not initialized")
	}
	return current, nil
}

// CloseEnv closes the environment of the running command, if any.
func CloseEnv() error {
	currentMu.Lock()
	e := current
	current = nil
	currentMu.Unlock()
	if e == nil {
		return nil
	}
	return e.Close()
}
