package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/protoflow/internal/config"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/project"
)

var rootCmd = &cobra.Command{
	Use:   "protoflow",
	Short: "Protoflow runs interactive prototypes",
	Long:  `Protoflow plays, inspects and edits interactive prototypes built from keyframes, display states and patch graphs.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "protoflow.yaml", "Path to protoflow.yaml")
}

// loadConfig reads the --config file. A missing file is only an error when
// the flag was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return nil, err
}

// loadProjectArg loads the project named by args[0], or the configured
// project file when no argument is given.
func loadProjectArg(cmd *cobra.Command, args []string) (*model.Project, error) {
	if len(args) > 0 {
		return project.Load(args[0])
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Project.Path == "" {
		return nil, errors.New("no project file given and none configured")
	}
	return project.Load(cfg.Project.Path)
}
