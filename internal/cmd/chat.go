package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/config"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/session"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the workflow builder in the terminal",
	Long: `Starts an interactive conversation against the local engine.

Commands:
  /compile [name]  compile the conversation into a workflow
  /reset           forget the conversation
  /quit            exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to use (default: new random id)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "chat")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	sessionID := chatSession
	if sessionID == "" {
		sessionID = "cli-" + uuid.New().String()
	}
	return chatLoop(ctx, eng.orch, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop reads one message per line from in until EOF or /quit.
func chatLoop(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Session %s. Type /quit to exit.\n", sessionID)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			if err := orch.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Conversation cleared.")
		case line == "/compile" || strings.HasPrefix(line, "/compile "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/compile"))
			rec, err := orch.Compile(ctx, sessionID, name)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Compiled %s %q (%d nodes, %s)\n", rec.ID, rec.Name, len(rec.Graph.Nodes), rec.Status)
		default:
			reply, err := orch.HandleMessage(ctx, sessionID, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printReply(out, reply)
		}
	}
}

func printReply(out io.Writer, reply *orchestrator.Reply) {
	if reply.SecurityWarning != "" {
		fmt.Fprintf(out, "[blocked: %s]\n", reply.SecurityWarning)
	}
	fmt.Fprintln(out, reply.AgentResponse)
	if len(reply.DetectedActions) > 0 {
		fmt.Fprintf(out, "\nActions: %s\n", strings.Join(reply.DetectedActions, " -> "))
	}
	if reply.IsWorkflowReady {
		fmt.Fprintln(out, "Workflow ready. Type /compile to build it.")
	}
}
