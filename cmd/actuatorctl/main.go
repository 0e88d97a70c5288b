package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/mdouchement/actuatord/cmd/actuatorctl/monitor"
	"github.com/mdouchement/actuatord/cmd/actuatorctl/send"
	"github.com/mdouchement/actuatord/environment"
	"github.com/mdouchement/actuatord/lora"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

func main() {
	client := &http.Client{}
	var socket string

	cmd := &cobra.Command{
		Use:     "actuatorctl",
		Short:   "A ctl used to interact with actuators over the radio link",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
	}

	mon := monitor.Command(client)
	mon.Flags().StringVarP(&socket, "socket", "S", "", "actuatord monitor socket")
	mon.PreRunE = func(cmd *cobra.Command, args []string) error {
		path, err := findSocket(socket)
		if err != nil {
			return err
		}

		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		}
		return nil
	}

	cmd.AddCommand(mon)
	cmd.AddCommand(send.Command())
	cmd.AddCommand(&cobra.Command{
		Use:   "ports",
		Short: "List the serial ports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := lora.Ports()
			if err != nil {
				return err
			}

			for _, p := range ports {
				if p.IsUSB {
					fmt.Printf("%s\t%s:%s\t%s\n", p.Name, p.VID, p.PID, p.Product)
					continue
				}
				fmt.Println(p.Name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for actuatorctl",
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

//
//
//

type config struct {
	Socket string `yaml:"socket"`
}

// findSocket looks up the flag, then the user config, then the default runtime path.
func findSocket(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", err
	}

	cpath := filepath.Join(u.HomeDir, ".config", "actuatorctl", "actuatorctl.yml") // Does not follow XDG..
	p, err := os.ReadFile(cpath)
	switch {
	case err == nil:
		var cfg config
		if err = yaml.Unmarshal(p, &cfg); err != nil {
			return "", fmt.Errorf("%s: %w", cpath, err)
		}
		if cfg.Socket != "" {
			return cfg.Socket, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	socket := environment.RuntimePath("actuatord.sock")
	if _, err = os.Stat(socket); err != nil {
		return "", fmt.Errorf("no monitor socket found, use --socket: %w", err)
	}
	return socket, nil
}
