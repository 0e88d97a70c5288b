// Package identity persists the device identity in namespaced key-value preferences.
package identity

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"go.yaml.in/yaml/v4"
)

const (
	Namespace = "robot"
	KeyDevice = "DEVICE_ID"

	// Unknown is the placeholder written by unprovisioned devices.
	Unknown = "unknown"
)

var (
	ErrMissing = errors.New("device identity is not set")
	ErrInvalid = errors.New("invalid device identity")
)

// A Store is a YAML file of namespaces holding string values.
type Store struct {
	sync   sync.Mutex
	path   string
	spaces map[string]map[string]string
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		spaces: make(map[string]map[string]string),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	err = yaml.NewDecoder(f).Decode(&s.spaces)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.spaces == nil {
		s.spaces = make(map[string]map[string]string)
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Get returns the value of key in namespace.
func (s *Store) Get(namespace, key string) (string, bool) {
	s.sync.Lock()
	defer s.sync.Unlock()

	v, ok := s.spaces[namespace][key]
	return v, ok
}

// Put sets key in namespace and writes the store to disk.
func (s *Store) Put(namespace, key, value string) error {
	s.sync.Lock()
	defer s.sync.Unlock()

	space, ok := s.spaces[namespace]
	if !ok {
		space = make(map[string]string)
		s.spaces[namespace] = space
	}
	space[key] = value

	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	payload, err := yaml.Marshal(s.spaces)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// DeviceID returns the provisioned identity, ErrMissing or ErrInvalid for a hand-edited store.
func (s *Store) DeviceID() (string, error) {
	id, _ := s.Get(Namespace, KeyDevice)
	id = strings.TrimSpace(id)
	if err := Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// Provision writes the device identity.
func (s *Store) Provision(id string) error {
	if err := Validate(id); err != nil {
		return err
	}
	return s.Put(Namespace, KeyDevice, id)
}

// Validate checks that id can be used as a frame address.
func Validate(id string) error {
	switch {
	case id == "", id == Unknown:
		return ErrMissing
	case strings.ContainsAny(id, ":\r\n \t"):
		return fmt.Errorf("%w: %q must not contain separators or spaces", ErrInvalid, id)
	case id == "ALL":
		return fmt.Errorf("%w: %q is reserved", ErrInvalid, id)
	}
	return nil
}

// MachineDeviceID derives a stable identity from the host machine id, prefixed by prefix.
func MachineDeviceID(prefix string) (string, error) {
	id, err := machineid.ProtectedID("actuatord")
	if err != nil {
		return "", err
	}
	if len(id) > 8 {
		id = id[:8]
	}

	return prefix + strings.ToUpper(id), nil
}
