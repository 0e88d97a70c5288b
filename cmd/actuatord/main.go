package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mdouchement/actuatord"
	"github.com/mdouchement/actuatord/cmd/actuatord/provision"
	showwaveform "github.com/mdouchement/actuatord/cmd/actuatord/show_waveform"
	"github.com/mdouchement/actuatord/hal/sim"
	"github.com/mdouchement/actuatord/identity"
	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
	"github.com/mdouchement/actuatord/ota"
	"github.com/mdouchement/logger"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cpath string
)

func main() {
	cmd := &cobra.Command{
		Use:     "actuatord",
		Short:   "A LoRa controlled actuator daemon",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
		RunE:    daemon,
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/actuatord/actuatord.yml", "Configfile path")
	cmd.AddCommand(provision.Command())
	cmd.AddCommand(showwaveform.Command())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for actuatord",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(cmd.Version)
		},
	})

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func daemon(_ *cobra.Command, args []string) error {
	cfg, err := actuatord.Load(cpath)
	if err != nil {
		return err
	}

	log := actuatord.NewLogger(os.Stdout, cfg.Debug)
	ctx := logger.WithLogger(context.Background(), log)

	log.Infof("actuatord version %s", version)

	//
	// Identity
	//

	id, err := deviceID(cfg)
	if err != nil {
		// The radio loop halts and keeps reporting it.
		log.WithError(err).Error("Could not load device identity")
	} else {
		log.Infof("Device ID: %s", id)
	}

	//
	// Motion & indicator
	//

	params, err := cfg.Motion.Parameters()
	if err != nil {
		return err
	}

	hw, _, _, _ := sim.Hardware(sim.NewTimer)
	led := &sim.Line{}
	log.Warnf("Using simulated motion hardware")

	engine, err := motion.New(hw, params)
	if err != nil {
		return err
	}
	engine.SetLogger(log)
	if err = engine.Init(); err != nil {
		return fmt.Errorf("motion: %w", err)
	}
	if !engine.SteppingAvailable() {
		log.Warnf("Stepping mode is disabled")
	}

	status := indicator.New(led)
	if err = status.Begin(); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	_ = status.Set(indicator.Standby)

	//
	// Radio
	//

	var radio *lora.Radio
	if cfg.Radio.Port == actuatord.PortAuto {
		radio, err = lora.OpenAuto(cfg.Radio.USBID, cfg.Radio.BaudRate)
	} else {
		radio, err = lora.Open(cfg.Radio.Port, cfg.Radio.BaudRate)
	}
	if err != nil {
		_ = status.Set(indicator.Error)
		return fmt.Errorf("radio: %w", err)
	}
	if cfg.Debug {
		radio.SetLogger(log)
	}
	defer radio.Close()
	log.Infof("Radio port `%s`", radio.Port())

	//
	// Update service
	//

	update := ota.New(cfg.Update.Listen, ota.FileSink{Path: cfg.Update.ImagePath},
		ota.WithMaxImageSize(cfg.Update.MaxImageSize),
		ota.WithActivity(func(active bool) {
			if active {
				_ = status.Set(indicator.UpdateActive)
				return
			}
			_ = status.Set(indicator.RadioLinkConnected)
		}),
	)
	update.SetLogger(log)

	//
	// Run
	//

	ctx, cancel := context.WithCancel(ctx)

	device, err := actuatord.New(cfg, actuatord.Components{
		DeviceID:  id,
		Radio:     radio,
		Motion:    engine,
		Indicator: status,
		Update:    update,
		Restarter: ota.ExecRestarter{Path: cfg.Update.ImagePath},
	})
	if err != nil {
		cancel()
		return err
	}
	device.Launch(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	cancel()
	device.Wait()

	if err = engine.Stop(); err != nil {
		log.WithError(err).Error("Could not stop motion")
	}

	log.Info("Gracefully shutdown")
	return nil
}

func deviceID(cfg actuatord.Config) (string, error) {
	store, err := identity.Open(cfg.IdentityStore)
	if err != nil {
		return "", err
	}

	id, err := store.DeviceID()
	if errors.Is(err, identity.ErrMissing) {
		return "", fmt.Errorf("%w, run `actuatord provision`", err)
	}
	return id, err
}
