package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	"github.com/m-mizutani/smartshelf/pkg/tool/history"
	toolinventory "github.com/m-mizutani/smartshelf/pkg/tool/inventory"
	shelftool "github.com/m-mizutani/smartshelf/pkg/tool/shelf"
	"github.com/m-mizutani/smartshelf/pkg/usecase/chat"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

func chatCommand() *cli.Command {
	var (
		cfg        config
		transcript string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "transcript",
			Usage:       "JSON file to resume the conversation from and save it to",
			Sources:     cli.EnvVars("SMARTSHELF_TRANSCRIPT"),
			Destination: &transcript,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the concierge in natural language",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			shelfTool, err := shelftool.New(a.engine)
			if err != nil {
				return goerr.Wrap(err, "failed to create shelf tool")
			}

			tools := []tool.Tool{shelfTool, toolinventory.NewOverview(a.inventory)}
			if a.auditLog != nil {
				tools = append(tools, history.New(a.auditLog))
			}

			contents, err := loadTranscript(transcript)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			session := chat.New(gemini, tool.New(tools...),
				chat.WithHistory(contents),
				chat.WithToolCallHook(func(ctx context.Context, call *genai.FunctionCall, resp *genai.FunctionResponse, err error) {
					logging.From(ctx).Debug("concierge called function", "name", call.Name, "args", call.Args, "error", err)
				}),
			)

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				Stdin:           io.NopCloser(c.Root().Reader),
				Stdout:          w,
				Stderr:          c.Root().ErrWriter,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create readline")
			}
			defer rl.Close()

			fmt.Fprintf(w, "Concierge is ready. Type 'quit' or an empty line to leave.\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				switch strings.ToLower(message) {
				case "", "q", "quit", "exit":
					fmt.Fprintf(w, "Goodbye!\n")
					return saveTranscript(transcript, session.History())
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.Root().ErrWriter))
				sp.Suffix = " thinking..."
				sp.Start()
				reply, err := session.Send(ctx, message)
				sp.Stop()

				if err != nil {
					if errors.Is(err, chat.ErrToolCallLimit) {
						fmt.Fprintf(w, "%s\n", reply)
						continue
					}
					return goerr.Wrap(err, "failed to send message")
				}
				fmt.Fprintf(w, "%s\n", reply)
			}

			return saveTranscript(transcript, session.History())
		},
	}
}

func loadTranscript(path string) ([]*genai.Content, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read transcript", goerr.V("path", path))
	}

	var contents []*genai.Content
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal transcript", goerr.V("path", path))
	}
	return contents, nil
}

func saveTranscript(path string, contents []*genai.Content) error {
	if path == "" {
		return nil
	}

	data, err := json.Marshal(contents)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal transcript")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write transcript", goerr.V("path", path))
	}
	return nil
}
