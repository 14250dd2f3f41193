// Command cannoli-trace compiles a canvas and prints its graph structure
// plus every vertex's final status once run, styled with lipgloss the way
// the pack's own TUI status colors are defined (grounded on
// tui/styles.go's StyleForStatus: pending/running/completed/failed/skipped
// each get a distinct color).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/config"
	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/run"
	"github.com/DeabLabs/cannoli-sub001/visualize"
)

var (
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	executingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	completeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rejectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
)

func styleForStatus(status objects.Status) lipgloss.Style {
	switch status {
	case objects.StatusPending:
		return pendingStyle
	case objects.StatusExecuting:
		return executingStyle
	case objects.StatusComplete, objects.StatusVersionComplete:
		return completeStyle
	case objects.StatusRejected:
		return rejectedStyle
	case objects.StatusError, objects.StatusWarning:
		return errorStyle
	default:
		return pendingStyle
	}
}

func main() {
	canvasPath := flag.String("canvas", "", "path to a .canvas JSON file")
	format := flag.String("format", "dot", "static export format before running: dot, mermaid, or none")
	doRun := flag.Bool("run", false, "also run the graph and print final per-vertex status")
	flag.Parse()

	if *canvasPath == "" {
		fmt.Fprintln(os.Stderr, "cannoli-trace: -canvas is required")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*canvasPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-trace: %v\n", err)
		os.Exit(1)
	}
	data, err := canvas.ParseJSON(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-trace: %v\n", err)
		os.Exit(1)
	}

	vg := compiler.Compile(data, compiler.DefaultConfig())
	for _, verr := range vg.Errors {
		fmt.Fprintf(os.Stderr, "cannoli-trace: compile warning: %s\n", verr)
	}

	switch *format {
	case "dot":
		fmt.Println(visualize.DrawDOT(vg))
	case "mermaid":
		fmt.Println(visualize.DrawMermaid(vg))
	case "none":
	default:
		fmt.Fprintf(os.Stderr, "cannoli-trace: unknown -format %q\n", *format)
		os.Exit(2)
	}

	if !*doRun {
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-trace: %v\n", err)
		os.Exit(1)
	}
	collab, err := run.DefaultCollaborators(cfg.OpenAIAPIKey, cfg.Model, cfg.VaultPath, cfg.MaxContextTokens, cfg.SearchEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-trace: %v\n", err)
		os.Exit(1)
	}

	runner := run.NewRunner(collab)
	result, err := runner.Run(context.Background(), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannoli-trace: run: %v\n", err)
	}

	fmt.Println(titleStyle.Render("\nFinal status"))
	for _, id := range result.Graph.Order {
		var status objects.Status
		switch {
		case result.Graph.Nodes[id] != nil:
			status = result.Graph.Nodes[id].CurrentStatus()
		case result.Graph.Edges[id] != nil:
			status = result.Graph.Edges[id].CurrentStatus()
		default:
			continue
		}
		fmt.Printf("  %s %s\n", styleForStatus(status).Render(string(status)), id)
	}
}
