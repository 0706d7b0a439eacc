package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/arloliu/go-gsender/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}

		printPorts(cmd.OutOrStdout(), ports, NewStyles(DefaultTheme))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func printPorts(w io.Writer, ports []transport.PortInfo, styles Styles) {
	if len(ports) == 0 {
		fmt.Fprintln(w, styles.Dim.Render("no serial ports found"))
		return
	}

	name := lipgloss.NewStyle().Width(24)
	for _, p := range ports {
		line := name.Render(p.Name)
		if p.IsUSB {
			line += styles.Label.Render(fmt.Sprintf("USB %s:%s", p.VID, p.PID))
			if p.Product != "" {
				line += " " + p.Product
			}
			if p.SerialNumber != "" {
				line += styles.Dim.Render(" sn " + p.SerialNumber)
			}
		}
		fmt.Fprintln(w, line)
	}
}
