// Command cannoli-run loads a canvas file and drives it to completion,
// the cannoli analogue of the teacher's examples/*/main.go entry points:
// plain flag/env wiring, no CLI framework, grounded on config's own
// convention of following that pack-wide pattern (config/config.go).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/config"
	"github.com/DeabLabs/cannoli-sub001/run"
)

func main() {
	canvasPath := flag.String("canvas", "", "path to a .canvas JSON file to run")
	searchEndpoint := flag.String("search", "", "override CANNOLI_SEARCH_ENDPOINT")
	flag.Parse()

	if *canvasPath == "" {
		fmt.Fprintln(os.Stderr, "cannoli-run: -canvas is required")
		os.Exit(2)
	}

	if err := mainErr(*canvasPath, *searchEndpoint); err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-run: %v\n", err)
		os.Exit(1)
	}
}

func mainErr(canvasPath, searchEndpoint string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if searchEndpoint != "" {
		cfg.SearchEndpoint = searchEndpoint
	}

	raw, err := os.ReadFile(canvasPath)
	if err != nil {
		return fmt.Errorf("read canvas: %w", err)
	}
	data, err := canvas.ParseJSON(raw)
	if err != nil {
		return fmt.Errorf("parse canvas: %w", err)
	}

	collab, err := run.DefaultCollaborators(cfg.OpenAIAPIKey, cfg.Model, cfg.VaultPath, cfg.MaxContextTokens, cfg.SearchEndpoint)
	if err != nil {
		return fmt.Errorf("build collaborators: %w", err)
	}
	collab.CheckpointEvery = cfg.CheckpointEvery

	runner := run.NewRunner(collab)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	result, err := runner.Run(ctx, data)
	if err != nil {
		return fmt.Errorf("run %q: %w", result.Stoppage.Reason, err)
	}

	fmt.Println(result.Output())
	return nil
}
