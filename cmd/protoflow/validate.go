package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/protoflow/internal/graph"
)

var validateCmd = &cobra.Command{
	Use:   "validate [project.json]",
	Short: "Check a project for broken references and shadowed transitions",
	Long:  `Lints the patch graph, keyframes and transitions of a project. Issues never stop a project from playing; the affected parts are inert.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := loadProjectArg(cmd, args)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		issues := graph.Validate(p)
		if len(issues) == 0 {
			fmt.Println("Project is valid")
			return
		}
		for _, issue := range issues {
			fmt.Printf("%-22s %-20s %s\n", issue.Kind, issue.EntityID, issue.Message)
		}
		fmt.Printf("%d issue(s)\n", len(issues))
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
