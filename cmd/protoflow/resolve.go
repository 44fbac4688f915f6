package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/protoflow/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [project.json]",
	Short: "Print the effective elements of a display state",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := loadProjectArg(cmd, args)
		if err != nil {
			fmt.Printf("Error loading project: %v\n", err)
			os.Exit(1)
		}

		id, _ := cmd.Flags().GetString("state")
		if id == "" && len(p.DisplayStates) > 0 {
			id = p.DisplayStates[0].ID
		}
		if id != "" && p.FindDisplayState(id) == nil {
			fmt.Printf("Unknown display state: %s\n", id)
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resolve.Effective(p, id)); err != nil {
			fmt.Printf("Error encoding elements: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringP("state", "s", "", "Display state id (defaults to the first)")
}
