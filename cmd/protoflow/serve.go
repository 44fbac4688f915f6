package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/protoflow/internal/api"
	"github.com/AaronLay10/protoflow/internal/config"
	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/graph"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/mqtt"
	"github.com/AaronLay10/protoflow/internal/player"
	"github.com/AaronLay10/protoflow/internal/project"
	"github.com/AaronLay10/protoflow/internal/scheduler"
	"github.com/AaronLay10/protoflow/internal/storage/postgres"
	"github.com/AaronLay10/protoflow/internal/store"
	"github.com/AaronLay10/protoflow/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Play a prototype and serve the inspector API",
	Long:  `Loads the configured project, runs it on a frame loop and exposes the inspector, frame stream and event log over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd); err != nil {
			log.Fatalf("serve: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides protoflow.yaml)")
	serveCmd.Flags().String("project", "", "Project file (overrides protoflow.yaml)")
	serveCmd.Flags().Bool("log-events", true, "Write every event to stdout as a JSON line")
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if path, _ := cmd.Flags().GetString("project"); path != "" {
		cfg.Project.Path = path
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Network.HTTPPort = port
	}

	if logEvents, _ := cmd.Flags().GetBool("log-events"); logEvents {
		events.SetOutput(os.Stdout)
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "protoflow starting", map[string]interface{}{
		"service":  "protoflow",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(cfg.ProjectID())
		if err != nil {
			log.Printf("postgres: unavailable, continuing without persistence: %v", err)
			api.SetPostgresState(false, true)
		} else {
			defer pg.Close()
			events.SetPostgresClient(pg)
			api.SetPostgresState(true, false)
		}
	}

	proj, err := loadServeProject(cfg, pg)
	if err != nil {
		return err
	}
	for _, issue := range graph.Validate(proj) {
		events.Emit("warn", "project.invalid", issue.Message, map[string]interface{}{
			"kind":      string(issue.Kind),
			"entity_id": issue.EntityID,
		})
	}
	events.Emit("info", "project.loaded", "", map[string]interface{}{
		"project_id":     cfg.ProjectID(),
		"keyframes":      len(proj.Keyframes),
		"display_states": len(proj.DisplayStates),
		"patches":        len(proj.Patches),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := scheduler.NewLoop(cfg.FrameInterval())
	pl := player.New(store.New(proj, cfg.HistoryDepth()), loop, player.Options{Highlight: cfg.Highlight()})
	loop.OnFrame(pl.Tick)
	go loop.Run(ctx)

	pl.Start()
	api.SetPlayerReady(true)

	if cfg.MQTT.Enabled {
		client := mqtt.NewClient("protoflow-" + cfg.ProjectID())
		bridge := mqtt.NewBridge(client, pl, cfg.TopicPrefix(), cfg.ProjectID())
		pl.OnFrame(bridge.ObserveFrame)
		connected := client.StartWithRetry(bridge, func(connected bool) {
			api.SetMQTTState(connected, true)
		})
		api.SetMQTTState(connected, true)
		defer client.Disconnect()
	}

	if err := api.InitAuth(); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	api.InitTLS()
	srv := api.NewServer(pl, projectSaver(cfg, pg))

	err = api.ListenAndServe(ctx, cfg.HTTPPort(), srv.Routes())
	api.SetPlayerReady(false)
	events.Emit("info", "system.shutdown", "protoflow stopping", nil)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// loadServeProject prefers the project file, then the latest revision in
// Postgres, then an empty project.
func loadServeProject(cfg *config.Config, pg *postgres.Client) (*model.Project, error) {
	if cfg.Project.Path != "" {
		p, err := project.Load(cfg.Project.Path)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Printf("project file %s not found", cfg.Project.Path)
	}
	if pg != nil {
		row, err := pg.LoadProject()
		switch {
		case err == nil:
			log.Printf("loaded project %s revision %d", row.ProjectID, row.Revision)
			return project.Decode(row.Document)
		case !errors.Is(err, postgres.ErrNoProject):
			return nil, err
		}
	}
	p := &model.Project{}
	p.Normalize()
	return p, nil
}

// projectSaver writes to the project file and, when attached, appends a
// revision to Postgres. It returns nil when there is nowhere to save.
func projectSaver(cfg *config.Config, pg *postgres.Client) api.Saver {
	path := cfg.Project.Path
	if path == "" && pg == nil {
		return nil
	}
	return func(p *model.Project) error {
		fields := map[string]interface{}{"project_id": cfg.ProjectID()}
		if path != "" {
			if err := project.Save(path, p); err != nil {
				return err
			}
			fields["path"] = path
		}
		if pg != nil {
			doc, err := project.Encode(p)
			if err != nil {
				return err
			}
			rev, err := pg.SaveProject(doc)
			if err != nil {
				return fmt.Errorf("failed to store revision: %w", err)
			}
			fields["revision"] = rev
		}
		events.Emit("info", "project.saved", "", fields)
		return nil
	}
}
