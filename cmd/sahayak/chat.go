package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sahayak-app/sahayak/pkg/store"
)

func newChatCommand() *cobra.Command {
	var (
		userID  string
		tag     string
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long:  "Run an interactive session or send a one-shot message. The intake tag uses the structured intake pipeline; any other tag gets the conversational assistant.",
		Example: strings.Join([]string{
			"  sahayak chat",
			"  sahayak chat --tag general",
			"  sahayak chat --message \"my water connection is broken\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(debug)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			conv, err := a.store.GetOrCreateConversation(ctx, userID, tag)
			if err != nil {
				return fmt.Errorf("open conversation: %w", err)
			}

			if strings.TrimSpace(message) != "" {
				reply, err := a.runTurn(ctx, conv, userID, tag, message)
				if err != nil {
					return err
				}
				fmt.Println(reply)
				return nil
			}

			return a.interactive(ctx, conv, userID, tag)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "local", "User id for memory and transcripts")
	cmd.Flags().StringVarP(&tag, "tag", "t", "intake", "Conversation tag (intake or general)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message instead of a REPL")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func (a *app) runTurn(ctx context.Context, conv store.Conversation, userID, tag, text string) (string, error) {
	if tag == "intake" {
		res, err := a.intake.RunTurn(ctx, conv.ID, userID, text)
		if err != nil {
			return "", err
		}
		return res.Rendered, nil
	}
	res, err := a.chat.RunTurn(ctx, conv.ID, userID, text)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (a *app) interactive(ctx context.Context, conv store.Conversation, userID, tag string) error {
	fmt.Printf("%s interactive mode (Ctrl+C to exit)\n\n", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".sahayak_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		reply, err := a.runTurn(ctx, conv, userID, tag, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", reply)
	}
}
