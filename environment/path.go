package environment

import (
	"os"
	"path/filepath"
)

const (
	// KeyStateDir overrides the directory holding the identity store and firmware image.
	KeyStateDir = "ACTUATORD_STATE_DIR"
	// KeyRuntimeDir overrides the directory holding the monitor socket.
	KeyRuntimeDir = "ACTUATORD_RUNTIME_DIR"

	DefaultStateDir   = "/var/lib/actuatord"
	DefaultRuntimeDir = "/run/actuatord"
)

func GetEnvPath(key, fallback string, elem ...string) (v string) {
	v = os.Getenv(key)
	if v == "" {
		v = fallback
	}

	return filepath.Join(append([]string{v}, elem...)...)
}

// StatePath returns a path under the state directory.
func StatePath(elem ...string) string {
	return GetEnvPath(KeyStateDir, DefaultStateDir, elem...)
}

// RuntimePath returns a path under the runtime directory.
func RuntimePath(elem ...string) string {
	return GetEnvPath(KeyRuntimeDir, DefaultRuntimeDir, elem...)
}
