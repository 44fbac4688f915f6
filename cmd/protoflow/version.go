package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/protoflow/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of protoflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("protoflow version %s (project format %d)\n", version.Version, version.ProjectFormat)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
