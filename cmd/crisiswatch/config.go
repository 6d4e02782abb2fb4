package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the merged configuration as YAML. Credentials are never printed; only whether each one is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "# source: %s\n", orDefault(cfgUsed, "built-in defaults"))
		os.Stdout.Write(out)

		status := cfg.CredentialStatus()
		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(os.Stdout, "# credentials:")
		for _, name := range names {
			state := "missing"
			if status[name] {
				state = "set"
			}
			fmt.Fprintf(os.Stdout, "#   %-18s %s\n", name, state)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
