// Package ota serves firmware image uploads over HTTP.
package ota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mdouchement/logger"
)

const (
	PathReady  = "/OTA"
	PathUpdate = "/update"
	FormField  = "update"

	ReplySuccess = "OTA Success. Rebooting..."
	ReplyFailure = "OTA Failed"
)

var ErrAlreadyRunning = errors.New("update service already running")

// Option configures a Service.
type Option func(*Service)

// WithActivity registers a hook called when an upload starts (true) and ends (false).
func WithActivity(f func(active bool)) Option {
	return func(s *Service) {
		s.activity = f
	}
}

// WithMaxImageSize bounds the accepted image size, 0 means unbounded.
func WithMaxImageSize(n int64) Option {
	return func(s *Service) {
		s.maxSize = n
	}
}

// A Service exposes a readiness probe and an image upload endpoint.
type Service struct {
	sync     sync.Mutex
	addr     string
	sink     Sink
	log      logger.Logger
	activity func(bool)
	maxSize  int64

	server   *http.Server
	listener net.Listener
	updated  chan struct{}
	upload   sync.Mutex
}

func New(addr string, sink Sink, opts ...Option) *Service {
	s := &Service{
		addr:    addr,
		sink:    sink,
		updated: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) SetLogger(l logger.Logger) {
	s.log = l
}

// Handler returns the HTTP routes of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathReady, s.ready)
	mux.HandleFunc("POST "+PathUpdate, s.update)
	return mux
}

// Begin starts listening. It fails if the service is already running.
func (s *Service) Begin() error {
	s.sync.Lock()
	defer s.sync.Unlock()

	if s.server != nil {
		return ErrAlreadyRunning
	}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listener = l
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// A token left by a previous session must not trigger a restart in this one.
	select {
	case <-s.updated:
	default:
	}

	go func(srv *http.Server) {
		if s.log != nil {
			s.log.Info("[ota] Starting HTTP server on", l.Addr().String())
		}
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && s.log != nil {
			s.log.WithError(err).Error("[ota] Could not serve HTTP")
		}
	}(s.server)

	return nil
}

// Running reports whether Begin succeeded and End was not called yet.
func (s *Service) Running() bool {
	s.sync.Lock()
	defer s.sync.Unlock()

	return s.server != nil
}

// Addr returns the listening address, empty when stopped.
func (s *Service) Addr() string {
	s.sync.Lock()
	defer s.sync.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Updated is signaled once an image has been committed.
func (s *Service) Updated() <-chan struct{} {
	return s.updated
}

// End stops the service, letting in-flight requests complete.
func (s *Service) End(ctx context.Context) error {
	s.sync.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.sync.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Service) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	if !s.Running() {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "0")
		return
	}

	io.WriteString(w, "1")
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	// One upload at a time.
	if !s.upload.TryLock() {
		http.Error(w, ReplyFailure, http.StatusConflict)
		return
	}
	defer s.upload.Unlock()

	if s.activity != nil {
		s.activity(true)
		defer s.activity(false)
	}

	size, err := s.receive(r)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Error("[ota] Update failed")
		}
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, ReplyFailure)
		return
	}

	if s.log != nil {
		s.log.Infof("[ota] Update success: %d bytes", size)
	}
	io.WriteString(w, ReplySuccess)

	select {
	case s.updated <- struct{}{}:
	default:
	}
}

func (s *Service) receive(r *http.Request) (int64, error) {
	body := io.Reader(r.Body)
	if s.maxSize > 0 {
		body = io.LimitReader(r.Body, s.maxSize+1)
	}

	src, name, err := s.source(r, body)
	if err != nil {
		return 0, err
	}
	if s.log != nil {
		s.log.Infof("[ota] Update: %s", name)
	}

	img, err := s.sink.Create()
	if err != nil {
		return 0, fmt.Errorf("create image: %w", err)
	}

	n, err := io.Copy(img, src)
	if err != nil {
		return n, errors.Join(fmt.Errorf("write image: %w", err), img.Abort())
	}
	if s.maxSize > 0 && n > s.maxSize {
		return n, errors.Join(fmt.Errorf("image exceeds %d bytes", s.maxSize), img.Abort())
	}

	if err = img.Commit(); err != nil {
		return n, fmt.Errorf("commit image: %w", err)
	}
	return n, nil
}

// source returns the image stream: the "update" part of a multipart form or the raw body.
func (s *Service) source(r *http.Request, body io.Reader) (io.Reader, string, error) {
	mediatype, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediatype, "multipart/") {
		return body, "raw body", nil
	}

	r.Body = io.NopCloser(body)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, "", fmt.Errorf("multipart: missing %q field", FormField)
			}
			return nil, "", fmt.Errorf("multipart: %w", err)
		}

		if part.FormName() == FormField {
			return part, part.FileName(), nil
		}
	}
}
