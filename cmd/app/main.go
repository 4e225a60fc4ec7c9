package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dreamland/internal"
	pkgconfig "github.com/starford/dreamland/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// build wires the application for one-shot commands; logs go to stderr so
// stdout stays machine-readable.
func build(ctx context.Context, cmd *cli.Command) (*internal.Components, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Build(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func process(ctx context.Context, cmd *cli.Command) error {
	c, err := build(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	var ids []int64
	if cmd.Bool("all") {
		if ids, err = c.Service.PendingDreams(ctx); err != nil {
			return err
		}
	} else {
		for _, arg := range cmd.Args().Slice() {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dream id %q", arg)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("nothing to process: pass dream ids or --all")
	}

	enc := json.NewEncoder(os.Stdout)
	for _, id := range ids {
		if _, err := c.Service.GetDream(ctx, id); err != nil {
			return err
		}
		out, err := c.Queue.ProcessNow(ctx, id)
		if err != nil {
			return fmt.Errorf("process dream %d: %w", id, err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	c, err := build(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	snapshot, err := c.Service.Export(ctx)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path := cmd.String("out"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}

func seed(ctx context.Context, cmd *cli.Command) error {
	c, err := build(ctx, cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	enc := json.NewEncoder(os.Stdout)
	for _, in := range internal.SampleDreams(time.Now()) {
		d, err := c.Service.CreateDream(ctx, in)
		if err != nil {
			return fmt.Errorf("seed dream: %w", err)
		}
		out, err := c.Queue.ProcessNow(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("process seeded dream %d: %w", d.ID, err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "dreamland",
		Usage:  "World model of recurring dream locations, entities and transits",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, processing workers and inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the world model as MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "process",
				Usage:     "Process unprocessed dreams now",
				ArgsUsage: "[dream ids...]",
				Action:    process,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Process every unprocessed dream",
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Write the world export as JSON",
				Action: export,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Record and process sample dreams",
				Action: seed,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
