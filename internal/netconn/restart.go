package netconn

import (
	"log"
	"os"
)

// Restarter brings the device back from a state it cannot recover from.
type Restarter interface {
	Restart(reason string)
}

// ExitRestarter exits the process and relies on the service supervisor
// (systemd Restart=always) to start it again.
type ExitRestarter struct {
	Code int
	exit func(int)
}

// NewExitRestarter returns a Restarter exiting with code.
func NewExitRestarter(code int) *ExitRestarter {
	return &ExitRestarter{Code: code, exit: os.Exit}
}

// Restart logs reason and exits.
func (r *ExitRestarter) Restart(reason string) {
	log.Printf("netconn: restarting: %s", reason)
	r.exit(r.Code)
}
