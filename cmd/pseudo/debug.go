package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/edulang/pseudo"
	pruntime "github.com/edulang/pseudo/runtime"
)

// runDebug steps the program interactively. Enter advances one statement,
// "vars" prints the current scope, "run" finishes without further pauses,
// "quit" abandons the program.
func runDebug(cfg appConfig, source string) error {
	rl, err := readline.New("debug> ")
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	host := &debugHost{rl: rl}
	stepper, err := pseudo.Debug(source, host)
	if err != nil {
		return err
	}
	defer stepper.Close()

	for {
		step, ok, err := stepper.Next()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("program finished")
			return nil
		}
		fmt.Printf("paused at line %d\n", step.Line)

	prompt:
		for {
			line, err := rl.Readline()
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			switch strings.TrimSpace(line) {
			case "", "s", "step":
				break prompt
			case "v", "vars":
				it := step.Scope.Iterator()
				for it.Next() {
					fmt.Printf("  %s = %s\n", it.Key(), it.Value().(pruntime.Value).String())
				}
			case "r", "run":
				for {
					_, ok, err := stepper.Next()
					if err != nil {
						return err
					}
					if !ok {
						fmt.Println("program finished")
						return nil
					}
				}
			case "q", "quit":
				return nil
			default:
				fmt.Println("commands: enter=step, vars, run, quit")
			}
		}
	}
}

type debugHost struct {
	rl *readline.Instance
}

func (h *debugHost) Display(line string) {
	fmt.Println(line)
}

func (h *debugHost) Input(prompt string) (string, bool) {
	h.rl.SetPrompt(prompt + "? ")
	defer h.rl.SetPrompt("debug> ")
	line, err := h.rl.Readline()
	if err != nil {
		return "", false
	}
	return line, true
}

func (h *debugHost) ShouldStop() bool {
	return false
}
