package ota

import (
	"os"

	"golang.org/x/sys/unix"
)

// A Restarter replaces the running process.
type Restarter interface {
	Restart() error
}

// RestartFunc adapts a function to Restarter.
type RestartFunc func() error

func (f RestartFunc) Restart() error {
	return f()
}

// ExecRestarter re-executes Path (the current executable when empty) with the current arguments and environment.
type ExecRestarter struct {
	Path string
}

func (r ExecRestarter) Restart() error {
	path := r.Path
	if path == "" {
		var err error
		path, err = os.Executable()
		if err != nil {
			return err
		}
	}

	return unix.Exec(path, os.Args, os.Environ())
}
