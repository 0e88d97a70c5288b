package send

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdouchement/actuatord/lora"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var (
		port   string
		usbID  string
		baud   int
		sender string
		raw    string
		listen time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send RECEIVER COMMAND [PAYLOAD]",
		Short: "Send a frame over the radio module and print the replies",
		Example: `  actuatorctl send DEV1 FORWARD
  actuatorctl send ALL SET_BATCH_PARAMS 'VOLTAGE:12;DUTY:40'
  actuatorctl send --hex 'c0 00 00 c1'`,
		Args: func(cmd *cobra.Command, args []string) error {
			if raw != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			var payload []byte
			if raw != "" {
				// Module configuration commands are sent as is.
				p, err := hex.DecodeString(strings.Join(strings.Fields(raw), ""))
				if err != nil {
					return fmt.Errorf("hex: %w", err)
				}
				payload = p
			} else {
				f := lora.Frame{
					Receiver: args[0],
					Sender:   sender,
					Command:  args[1],
				}
				if len(args) == 3 {
					f.Payload = args[2]
				}
				if _, err := lora.Parse(strings.TrimSuffix(f.String(), "\n")); err != nil {
					return err
				}
				payload = []byte(f.String())
			}

			var radio *lora.Radio
			var err error
			if port == "auto" {
				radio, err = lora.OpenAuto(usbID, baud)
			} else {
				radio, err = lora.Open(port, baud)
			}
			if err != nil {
				return err
			}
			defer radio.Close()

			if err = radio.SendRaw(payload); err != nil {
				return err
			}
			fmt.Printf("> %s\n", display(payload, raw != ""))

			return receive(radio, listen, raw != "")
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "auto", "Serial port of the radio module")
	cmd.Flags().StringVarP(&usbID, "usb-id", "u", "1a86:7523", "USB identifier (VID:PID) used when port is auto")
	cmd.Flags().IntVarP(&baud, "baud", "b", lora.DefaultBaudRate, "Baud rate")
	cmd.Flags().StringVarP(&sender, "from", "f", lora.Host, "Sender identifier")
	cmd.Flags().StringVarP(&raw, "hex", "x", "", "Send raw hexadecimal bytes instead of a frame")
	cmd.Flags().DurationVarP(&listen, "listen", "l", 2*time.Second, "How long to wait for replies")

	return cmd
}

func receive(radio *lora.Radio, d time.Duration, raw bool) error {
	framer := lora.NewFramer(lora.DefaultMaxLineLength)
	buf := make([]byte, 64)

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		n, err := radio.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		if raw {
			fmt.Printf("< %s\n", display(buf[:n], true))
			continue
		}

		frames, errs := framer.Write(buf[:n])
		for _, f := range frames {
			fmt.Printf("< %s\n", strings.TrimSuffix(f.String(), "\n"))
		}
		for _, err := range errs {
			if errors.Is(err, lora.ErrLineTooLong) {
				fmt.Println("< (line too long, discarded)")
				continue
			}
			fmt.Printf("< (%s)\n", err)
		}
	}

	return nil
}

func display(p []byte, raw bool) string {
	if raw {
		return hex.EncodeToString(p)
	}
	return strings.TrimSuffix(string(p), "\n")
}
