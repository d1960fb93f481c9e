// Command chatrelay runs the messaging ingress/egress service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "Multi-tenant messaging ingress and egress service",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml")
	root.AddCommand(newServeCmd())
	root.AddCommand(newPollCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
