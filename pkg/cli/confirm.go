package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// console reads answers from the person at the desk. The terminal is only
// opened once a question is actually asked.
type console struct {
	cmd       *cli.Command
	rl        *readline.Instance
	assumeYes bool
}

func newConsole(c *cli.Command, assumeYes bool) *console {
	return &console{cmd: c, assumeYes: assumeYes}
}

func (x *console) open() error {
	if x.rl != nil {
		return nil
	}

	root := x.cmd.Root()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		Stdin:           io.NopCloser(root.Reader),
		Stdout:          root.Writer,
		Stderr:          root.ErrWriter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create readline")
	}
	x.rl = rl
	return nil
}

func (x *console) Close() {
	if x.rl != nil {
		_ = x.rl.Close()
	}
}

// Ask prints question and returns the trimmed answer. io.EOF is returned
// when input ends or the user interrupts.
func (x *console) Ask(question string) (string, error) {
	if err := x.open(); err != nil {
		return "", err
	}

	x.rl.SetPrompt(question + " ")
	defer x.rl.SetPrompt("> ")

	line, err := x.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", goerr.Wrap(err, "failed to read input")
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements flow.Confirmer
func (x *console) Confirm(ctx context.Context, question string) (bool, error) {
	if x.assumeYes {
		return true, nil
	}

	for {
		answer, err := x.Ask(question + " [y/n]")
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
