package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/edulang/pseudo"
)

func main() {
	mode := flag.String("mode", "auto", "auto|tui|run|debug|fmt|flowchart")
	seed := flag.Int64("seed", -1, "fixed random seed (-1 uses a time seed)")
	write := flag.Bool("w", false, "with -mode fmt, rewrite the file in place")
	flag.Parse()

	file := flag.Arg(0)
	source, err := loadSource(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pseudo: %v\n", err)
		os.Exit(1)
	}

	cfg := appConfig{file: file, mode: *mode, seed: *seed}

	resolved := cfg.mode
	if resolved == "auto" {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			resolved = "tui"
		} else {
			resolved = "run"
		}
	}

	switch resolved {
	case "tui":
		p := tea.NewProgram(newModel(cfg, source), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "tui: %v\n", err)
			os.Exit(1)
		}
	case "run":
		if err := runPlain(cfg, source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "debug":
		if err := runDebug(cfg, source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "fmt":
		formatted := pseudo.Format(source)
		if *write && file != "" {
			if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "pseudo: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Print(formatted)
	case "flowchart":
		graph, err := pseudo.Flowchart(source)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		out, err := json.MarshalIndent(graph, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "pseudo: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	default:
		fmt.Fprintf(os.Stderr, "pseudo: unknown mode %q\n", resolved)
		os.Exit(1)
	}
}
