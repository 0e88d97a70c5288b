package ota

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrEmptyImage = errors.New("empty image")

// A Sink receives firmware images.
type Sink interface {
	Create() (Image, error)
}

// An Image is written sequentially then committed or aborted.
type Image interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileSink stores the image at Path. The previous image is only replaced on commit.
type FileSink struct {
	Path string
}

func (s FileSink) Create() (Image, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*.part")
	if err != nil {
		return nil, err
	}

	return &fileImage{f: f, path: s.Path}, nil
}

type fileImage struct {
	f    *os.File
	path string
	size int64
}

func (i *fileImage) Write(p []byte) (int, error) {
	n, err := i.f.Write(p)
	i.size += int64(n)
	return n, err
}

func (i *fileImage) Commit() error {
	if i.size == 0 {
		return errors.Join(ErrEmptyImage, i.Abort())
	}

	if err := i.f.Sync(); err != nil {
		return errors.Join(err, i.Abort())
	}
	if err := i.f.Chmod(0o755); err != nil {
		return errors.Join(err, i.Abort())
	}
	if err := i.f.Close(); err != nil {
		return errors.Join(err, os.Remove(i.f.Name()))
	}

	if err := os.Rename(i.f.Name(), i.path); err != nil {
		return fmt.Errorf("install image: %w", err)
	}
	return nil
}

func (i *fileImage) Abort() error {
	i.f.Close()
	return os.Remove(i.f.Name())
}
