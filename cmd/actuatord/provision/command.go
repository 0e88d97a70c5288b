package provision

import (
	"errors"
	"fmt"

	"github.com/mdouchement/actuatord"
	"github.com/mdouchement/actuatord/identity"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var cpath string
	var prefix string
	var machine bool
	var force bool

	cmd := &cobra.Command{
		Use:   "provision [DEVICE_ID]",
		Short: "Write the device identity used as radio address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := actuatord.Load(cpath)
			if err != nil {
				return err
			}

			var id string
			switch {
			case machine && len(args) == 0:
				id, err = identity.MachineDeviceID(prefix)
				if err != nil {
					return fmt.Errorf("machine id: %w", err)
				}
			case !machine && len(args) == 1:
				id = args[0]
			default:
				return errors.New("either a DEVICE_ID or --machine-id is required")
			}

			store, err := identity.Open(cfg.IdentityStore)
			if err != nil {
				return err
			}

			if current, err := store.DeviceID(); err == nil && current != id && !force {
				return fmt.Errorf("already provisioned as %s, use --force to replace it", current)
			}

			if err = store.Provision(id); err != nil {
				return err
			}

			fmt.Printf("Provisioned %s in %s\n", id, store.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cpath, "config", "c", "/etc/actuatord/actuatord.yml", "Configfile path")
	cmd.Flags().BoolVarP(&machine, "machine-id", "m", false, "Derive the identity from the host machine id")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "ACT-", "Prefix of the machine derived identity")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing identity")

	return cmd
}
