package omero

import "fmt"

// DefaultPort is the OMERO web gateway port used when none is configured.
const DefaultPort = 4064

// Config carries everything needed to establish (or rejoin) a server
// session. It is plain data so the dispatcher can hand it to worker
// processes, which each dial their own connection - live connections are
// never shared across process boundaries.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	// SessionID joins an existing session instead of creating one.
	// The CLI creates the session and passes the token to workers.
	SessionID string `yaml:"session_id,omitempty"`
	// GroupID selects the server-side data group (-1 = all groups).
	GroupID int64 `yaml:"group,omitempty"`
}

// withDefaults returns a copy with host/port defaults applied, mirroring the
// server's conventional localhost:4064 endpoint.
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	return c
}

// Validate checks that the config can produce a session: either a session
// token to rejoin, or credentials to create one.
func (c *Config) Validate() error {
	if c.SessionID == "" && c.User == "" {
		return fmt.Errorf("either a session ID or a user is required")
	}
	return nil
}
