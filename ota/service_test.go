package ota_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/actuatord/ota"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	s := ota.New("127.0.0.1:0", ota.FileSink{Path: filepath.Join(t.TempDir(), "image")})
	require.False(t, s.Running())
	require.Empty(t, s.Addr())

	require.NoError(t, s.Begin())
	require.ErrorIs(t, s.Begin(), ota.ErrAlreadyRunning)
	require.True(t, s.Running())

	resp, err := http.Get("http://" + s.Addr() + ota.PathReady)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.End(ctx))
	require.False(t, s.Running())
	require.NoError(t, s.End(ctx))
}

func TestReadinessStopped(t *testing.T) {
	s := ota.New("127.0.0.1:0", ota.FileSink{Path: filepath.Join(t.TempDir(), "image")})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + ota.PathReady)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUploadMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	var (
		mu       sync.Mutex
		activity []bool
	)
	s := ota.New("127.0.0.1:0", ota.FileSink{Path: path}, ota.WithActivity(func(active bool) {
		mu.Lock()
		defer mu.Unlock()
		activity = append(activity, active)
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(ota.FormField, "firmware.bin")
	require.NoError(t, err)
	_, err = fw.Write([]byte("new-firmware"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+ota.PathUpdate, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, ota.ReplySuccess, string(body))

	select {
	case <-s.Updated():
	default:
		t.Fatal("update not signaled")
	}

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new-firmware", string(image))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, activity)
}

func TestUploadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	s := ota.New("127.0.0.1:0", ota.FileSink{Path: path})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+ota.PathUpdate, "application/octet-stream", bytes.NewBufferString("raw-firmware"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "raw-firmware", string(image))
}

func TestUploadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	s := ota.New("127.0.0.1:0", ota.FileSink{Path: path}, ota.WithMaxImageSize(4))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for _, payload := range []string{"", "too-large"} {
		resp, err := http.Post(srv.URL+ota.PathUpdate, "application/octet-stream", bytes.NewBufferString(payload))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.Equal(t, ota.ReplyFailure, string(body))
	}

	select {
	case <-s.Updated():
		t.Fatal("failed update signaled")
	default:
	}

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous", string(image))
}

func TestBeginDropsStaleUpdate(t *testing.T) {
	s := ota.New("127.0.0.1:0", ota.FileSink{Path: filepath.Join(t.TempDir(), "image")})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+ota.PathUpdate, "application/octet-stream", bytes.NewBufferString("firmware"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Begin())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.End(ctx))
	}()

	select {
	case <-s.Updated():
		t.Fatal("stale update signaled")
	default:
	}
}

func TestRestartFunc(t *testing.T) {
	var called bool
	var r ota.Restarter = ota.RestartFunc(func() error {
		called = true
		return nil
	})

	require.NoError(t, r.Restart())
	require.True(t, called)
}
