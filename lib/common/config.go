package common

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig holds everything a command needs to open the local store, reach the
// remote and run a sync.
type ClientConfig struct {
	// remote media service, empty = offline
	Origin        string
	TimeoutSecond int

	// local store
	DataDir string
	Engine  string
	Codec   string

	// sync
	SyncIntervalSecond int
	SyncPolicy         string
	Coherency          string

	LogLevel string
}

// Timeout returns the per-request timeout of the remote store.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// SyncInterval returns the period of the sync loop.
func (c *ClientConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSecond) * time.Second
}

// Offline reports whether no remote origin is configured.
func (c *ClientConfig) Offline() bool {
	return c.Origin == ""
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Remote")
	if c.Offline() {
		addField("Origin", "(offline)")
	} else {
		addField("Origin", c.Origin)
	}
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Local Store")
	if c.DataDir == "" {
		addField("Data Directory", "(volatile)")
	} else {
		addField("Data Directory", c.DataDir)
	}
	addField("Engine", c.Engine)
	addField("Codec", c.Codec)

	addSection("Sync")
	addField("Interval", fmt.Sprintf("%d sec", c.SyncIntervalSecond))
	addField("Policy", c.SyncPolicy)
	addField("Coherency", c.Coherency)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
