package actuatord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdouchement/actuatord/identity"
	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/ota"
	"github.com/mdouchement/logger"
)

// IdentityRetry is the interval of the fatal log when the device has no identity.
const IdentityRetry = 5 * time.Second

// ReadErrorInterval is the minimum interval between two logs of a failing radio read.
const ReadErrorInterval = 5 * time.Second

// ShutdownTimeout bounds the wait for in-flight uploads when the process stops.
const ShutdownTimeout = 5 * time.Second

// Components are the collaborators driven by a Device.
type Components struct {
	// DeviceID is empty when the identity store is not provisioned.
	DeviceID  string
	Radio     Radio
	Motion    Motion
	Indicator Indicator
	Update    UpdateService
	Restarter ota.Restarter
}

// A Device runs the radio, update and indicator loops.
type Device struct {
	cfg        Config
	id         string
	radio      Radio
	motion     Motion
	indicator  Indicator
	update     UpdateService
	restarter  ota.Restarter
	signal     *Signal
	framer     *lora.Framer
	dispatcher *Dispatcher
	events     chan event
	listener   net.Listener
	wg         sync.WaitGroup

	updating atomic.Bool
	frames   atomic.Uint64
	errors   atomic.Uint64
}

func New(cfg Config, c Components) (*Device, error) {
	if c.Radio == nil || c.Motion == nil || c.Indicator == nil || c.Update == nil {
		return nil, errors.New("missing component")
	}

	d := &Device{
		cfg:       cfg,
		id:        c.DeviceID,
		radio:     c.Radio,
		motion:    c.Motion,
		indicator: c.Indicator,
		update:    c.Update,
		restarter: c.Restarter,
		signal:    NewSignal(),
		framer:    lora.NewFramer(cfg.Radio.MaxLineLength),
		events:    make(chan event, 10),
	}

	if cfg.Socket == "" {
		return d, nil
	}

	err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if _, err := os.Stat(cfg.Socket); err == nil {
		fmt.Printf("Removing existing %s\n", cfg.Socket)
		os.Remove(cfg.Socket)
	}
	d.listener, err = net.Listen("unix", cfg.Socket)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	return d, nil
}

// Signal returns the lifecycle signal of the update loop.
func (d *Device) Signal() *Signal {
	return d.signal
}

// Launch starts every loop. They all stop when ctx is done, see Wait.
func (d *Device) Launch(ctx context.Context) {
	log := logger.LogWith(ctx)

	d.dispatcher = NewCommandDispatcher(d.id, Commands{
		Motion:    d.motion,
		Indicator: d.indicator,
		Signal:    d.signal,
		Log:       log,
	})

	d.spawn(func() { d.indicatorLoop(ctx) })
	d.spawn(func() { d.radioLoop(ctx, log) })
	d.spawn(func() { d.updateLoop(ctx, log) })

	if d.listener == nil {
		return
	}

	d.spawn(func() { d.eventLoop(ctx) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", d.status(log))
	mux.HandleFunc("GET /monitor", d.monitor(ctx, log))
	server := &http.Server{Handler: mux}

	d.spawn(func() {
		log.Info("Starting HTTP server on", d.listener.Addr().String())
		err := server.Serve(d.listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Could not serve HTTP")
		}
	})

	d.spawn(func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.refresh()
			case <-ctx.Done():
				if err := server.Close(); err != nil {
					log.WithError(err).Error("Could not close monitor server")
				}
				if err := os.Remove(d.cfg.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.WithError(err).Errorf("Could not remove socket %s", d.cfg.Socket)
				}
				return
			}
		}
	})
}

// Wait blocks until every loop has returned.
func (d *Device) Wait() {
	d.wg.Wait()
}

func (d *Device) spawn(f func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		f()
	}()
}

func (d *Device) indicatorLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Indicator.Poll.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = d.indicator.Update()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Device) radioLoop(ctx context.Context, log logger.Logger) {
	if d.id == "" {
		d.halt(ctx, log)
		return
	}

	log.Infof("[radio] Radio loop started. Device ID is %s", d.id)
	d.send(log, lora.Frame{
		Receiver: lora.Host,
		Sender:   d.id,
		Command:  lora.CommandParams,
		Payload:  d.motion.ParamsString(),
	})

	var (
		failing   bool
		lastError time.Time
		skipped   int
	)

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := d.radio.Read(buf)
		switch {
		case err != nil && time.Since(lastError) >= ReadErrorInterval:
			log.WithError(err).Errorf("[radio] Could not read (%d similar errors skipped)", skipped)
			failing, lastError, skipped = true, time.Now(), 0
		case err != nil:
			skipped++
		case failing:
			log.Info("[radio] Read recovered")
			failing, lastError, skipped = false, time.Time{}, 0
		}

		for _, b := range buf[:n] {
			frame, err := d.framer.Push(b)
			if err != nil {
				d.errors.Add(1)
				log.WithError(err).Warnf("[radio] Discarding line")
				continue
			}
			if frame != nil {
				d.process(log, *frame)
			}
		}

		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.cfg.Radio.Poll.Duration):
			}
		}
	}
}

// halt never processes any frame, the device must be provisioned and restarted.
func (d *Device) halt(ctx context.Context, log logger.Logger) {
	ticker := time.NewTicker(IdentityRetry)
	defer ticker.Stop()

	for {
		log.WithError(identity.ErrMissing).Error("[radio] FATAL: Halting radio loop")
		_ = d.indicator.Set(indicator.Error)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Device) process(log logger.Logger, f lora.Frame) {
	if !f.IsFor(d.id) {
		log.Debugf("[radio] Ignoring command for other device: %s", f.Receiver)
		return
	}

	d.frames.Add(1)
	log.Infof("[radio] From: %s, Cmd: '%s', Payload: '%s'", f.Sender, f.Command, f.Payload)

	reply, err := d.dispatcher.Dispatch(f)
	if err != nil {
		d.errors.Add(1)
		if errors.Is(err, ErrUnknownCommand) {
			log.Warnf("[radio] Unknown command for me: %s", f.Command)
		} else {
			log.WithError(err).Error("[radio] Command rejected")
		}
		return
	}

	d.send(log, *reply)
	d.refresh()
}

func (d *Device) send(log logger.Logger, f lora.Frame) {
	if err := d.radio.Send(f); err != nil {
		d.errors.Add(1)
		log.WithError(err).Errorf("[radio] Could not send %s", f.Command)
	}
}

func (d *Device) updateLoop(ctx context.Context, log logger.Logger) {
	for {
		bits, err := d.signal.Wait(ctx, SignalStartUpdate|SignalStopUpdate)
		if err != nil {
			return
		}

		if bits&SignalStartUpdate != 0 {
			d.session(ctx, log)
			continue
		}

		log.Debug("[ota] Service is not running, nothing to stop")
	}
}

// session runs the update service until it is stopped, an image is installed or ctx is done.
func (d *Device) session(ctx context.Context, log logger.Logger) {
	log.Info("[ota] Starting update service...")
	_ = d.indicator.Set(indicator.RadioLinkConnecting)

	if err := d.update.Begin(); err != nil {
		log.WithError(err).Error("[ota] Could not start update service")
		_ = d.indicator.Set(indicator.Error)
		return
	}

	d.updating.Store(true)
	defer d.updating.Store(false)

	_ = d.indicator.Set(indicator.RadioLinkConnected)
	log.Infof("[ota] Update service is now running on %s", d.update.Addr())
	d.send(log, lora.Frame{
		Receiver: lora.Host,
		Sender:   d.id,
		Command:  lora.CommandReportIP,
		Payload:  d.update.Addr(),
	})
	d.refresh()

	ticker := time.NewTicker(d.cfg.Update.Poll.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			d.end(ctx, log)
			cancel()
			d.installed(log)
			return

		case <-d.update.Updated():
			d.end(ctx, log)
			d.restart(log)
			return

		case <-ticker.C:
			bits := d.signal.Take(SignalStartUpdate | SignalStopUpdate)
			if bits&SignalStartUpdate != 0 {
				log.Info("[ota] Service is already running, start ignored")
			}
			if bits&SignalStopUpdate != 0 {
				log.Info("[ota] Stopping update service...")
				d.end(ctx, log)
				if d.installed(log) {
					return
				}
				_ = d.indicator.Set(indicator.Standby)
				log.Info("[ota] Update service stopped")
				return
			}
		}
	}
}

// installed restarts when an upload completed while the service was shutting down.
func (d *Device) installed(log logger.Logger) bool {
	select {
	case <-d.update.Updated():
		d.restart(log)
		return true
	default:
		return false
	}
}

func (d *Device) restart(log logger.Logger) {
	log.Info("[ota] Image installed, rebooting...")
	if err := d.motion.Stop(); err != nil {
		log.WithError(err).Error("[ota] Could not stop motion")
	}
	if d.restarter == nil {
		return
	}
	if err := d.restarter.Restart(); err != nil {
		log.WithError(err).Error("[ota] Could not restart")
		_ = d.indicator.Set(indicator.Error)
	}
}

func (d *Device) end(ctx context.Context, log logger.Logger) {
	if err := d.update.End(ctx); err != nil {
		log.WithError(err).Error("[ota] Could not stop update service")
	}
	d.refresh()
}

// Snapshot returns the current status of the device.
func (d *Device) Snapshot() Status {
	s := Status{
		DeviceID:  d.id,
		Indicator: d.indicator.State().String(),
		Updating:  d.updating.Load(),
		Motion:    d.motion.Snapshot(),
		Frames:    d.frames.Load(),
		Errors:    d.errors.Load(),
		At:        time.Now(),
	}
	if s.Updating {
		s.UpdateURL = "http://" + d.update.Addr() + ota.PathUpdate
	}
	return s
}

func (d *Device) refresh() {
	if d.listener == nil {
		return
	}

	select {
	case d.events <- event{name: eventRefreshWatchers}:
	default:
		// A refresh is already pending.
	}
}

func (d *Device) eventLoop(ctx context.Context) {
	log := logger.LogWith(ctx)
	watchers := map[int64]chan<- []byte{}

	for {
		var e event
		select {
		case e = <-d.events:
		case <-ctx.Done():
			for id, watcher := range watchers {
				close(watcher)
				delete(watchers, id)
			}
			return
		}

		switch e.name {
		case eventRefreshWatchers:
			if len(watchers) == 0 {
				continue
			}

			payload, err := json.Marshal(d.Snapshot())
			if err != nil {
				log.WithError(err).Error("Could not serialize status") // Should never happen
				continue
			}

			for _, watcher := range watchers {
				select {
				case watcher <- payload:
				default:
					// Slow client, it will get the next one.
				}
			}
		case eventWatch:
			watchers[e.monitorID] = e.monitor
			d.refresh()
		case eventUnwatch:
			if watcher, ok := watchers[e.monitorID]; ok {
				close(watcher)
				delete(watchers, e.monitorID)
			}
		}
	}
}

func (d *Device) status(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(d.Snapshot()); err != nil {
			log.WithError(err).Error("Could not write status")
		}
	}
}

func (d *Device) monitor(ctx context.Context, log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Client connected")

		// Set http headers required for SSE.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		disconnected := r.Context().Done()

		id := genID()
		ch := make(chan []byte, 20)
		select {
		case d.events <- event{name: eventWatch, monitorID: id, monitor: ch}:
		case <-ctx.Done():
			return
		}

		rc := http.NewResponseController(w)
		for {
			select {
			case <-disconnected:
				log.Info("Client disconnected")
				select {
				case d.events <- event{name: eventUnwatch, monitorID: id}:
				case <-ctx.Done():
				}
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}

				_, err := w.Write(append(payload, '\n', '\n'))
				if err != nil {
					log.WithError(err).Error("Could not write monitor SSE payload")
					return
				}

				err = rc.Flush()
				if err != nil {
					log.WithError(err).Error("Could not flush monitor SSE payload")
					return
				}
			}
		}
	}
}
