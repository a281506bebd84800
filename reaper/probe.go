package reaper

import (
	"net"
	"time"
)

// dialActive connects to the unix socket at path. The socket is considered
// inactive only when the connection is refused or the socket vanished;
// successes, timeouts and every other failure count as active.
func dialActive(path string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err == nil {
		_ = conn.Close()
		return true
	}
	return !isInactiveDialErr(err)
}
