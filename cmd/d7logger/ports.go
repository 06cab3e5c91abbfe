package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/render"
)

type portInfo struct {
	name   string
	detail string
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := listPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no serial ports found")
				return nil
			}

			out, color := consoleOutput(cmd, config.ColorAuto)
			r := render.New(config.Default(), color)
			now := time.Now()
			for _, p := range ports {
				if _, err := fmt.Fprint(out, r.Port(now, p.name, p.detail)); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// listPorts prefers the detailed USB enumeration and falls back to plain
// port names where it is unavailable.
func listPorts() ([]portInfo, error) {
	var ports []portInfo
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			ports = append(ports, portInfo{name: d.Name, detail: describePort(d)})
		}
	} else {
		names, listErr := serial.GetPortsList()
		if listErr != nil {
			return nil, fmt.Errorf("list serial ports: %w", listErr)
		}
		for _, name := range names {
			ports = append(ports, portInfo{name: name})
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].name < ports[j].name })

	return ports, nil
}

func describePort(d *enumerator.PortDetails) string {
	if d == nil || !d.IsUSB {
		return ""
	}
	detail := fmt.Sprintf("USB %s:%s", d.VID, d.PID)
	if d.Product != "" {
		detail += " " + d.Product
	}
	if d.SerialNumber != "" {
		detail += " (" + d.SerialNumber + ")"
	}

	return detail
}
