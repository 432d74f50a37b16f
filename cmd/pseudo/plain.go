package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/edulang/pseudo"
)

// runPlain drives the interpreter over stdin/stdout, for pipes and terminals
// without TUI support.
func runPlain(cfg appConfig, source string) error {
	host := &plainHost{reader: bufio.NewReader(os.Stdin)}
	var err error
	if cfg.seed >= 0 {
		err = pseudo.RunSeeded(source, host, cfg.seed)
	} else {
		err = pseudo.Run(source, host)
	}
	return err
}

type plainHost struct {
	reader *bufio.Reader
}

func (h *plainHost) Display(line string) {
	fmt.Println(line)
}

func (h *plainHost) Input(prompt string) (string, bool) {
	fmt.Printf("%s? ", prompt)
	line, err := h.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false
	}
	if err == io.EOF && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (h *plainHost) ShouldStop() bool {
	return false
}
