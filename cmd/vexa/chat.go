package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vexaai/vexa/pkg/client"
	vexaerrors "github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/orchestrator"
)

func runChatCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	docID := fs.String("doc", "", "start a new session against this document")
	upload := fs.String("upload", "", "upload this PDF and chat with it")
	sessionID := fs.String("session", "", "reopen an existing session")
	if err := fs.Parse(args); err != nil {
		return vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "parse chat flags")
	}

	if !a.orch.IsAuthenticated() {
		return vexaerrors.New(vexaerrors.ErrCodeAuthExpired, "not signed in").
			WithUserMessage("Not signed in. Run 'vexa login' first.")
	}

	result, err := a.orch.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if result.FromCache {
		return vexaerrors.New(vexaerrors.ErrCodeTransport, "server unreachable").
			WithUserMessage("The server is unreachable; chat needs a live connection.")
	}

	session, history, err := resolveChatSession(ctx, a, result, *docID, *upload, *sessionID)
	if err != nil {
		return err
	}
	defer a.orch.Conversations().Deactivate()

	printChatHeader(a, session)
	for _, msg := range history {
		renderMessage(a, msg)
	}

	return chatLoop(ctx, a)
}

// resolveChatSession picks or creates the session the loop will talk to,
// returning any existing history to replay.
func resolveChatSession(ctx context.Context, a *app, boot *orchestrator.BootstrapResult, docID, upload, sessionID string) (*client.ChatSession, []client.ChatMessage, error) {
	switch {
	case upload != "":
		info, err := os.Stat(upload)
		if err != nil {
			return nil, nil, vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "stat upload file").
				WithUserMessage(fmt.Sprintf("Cannot read %q.", upload))
		}
		f, err := os.Open(upload)
		if err != nil {
			return nil, nil, vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "open upload file").
				WithUserMessage(fmt.Sprintf("Cannot read %q.", upload))
		}
		defer f.Close()

		started, err := a.orch.UploadAndStartChat(ctx, info.Name(), info.Size(), f)
		if err != nil {
			return nil, nil, err
		}
		a.out.Dim("Uploaded. Waiting for processing...")
		if _, err := a.orch.AwaitProcessed(ctx, started.DocumentID, 2*time.Second); err != nil {
			return nil, nil, err
		}
		return started.Session, nil, nil

	case docID != "":
		session, err := a.orch.NewChat(ctx, docID)
		if err != nil {
			return nil, nil, err
		}
		return session, nil, nil

	case sessionID != "":
		session, history, err := a.orch.OpenChat(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		return session, history, nil

	default:
		// Fall back to the most recent session.
		if len(boot.Sessions) == 0 {
			return nil, nil, vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "no sessions to resume").
				WithUserMessage("No chat sessions yet. Use 'vexa chat --upload <file.pdf>' or 'vexa chat --doc <id>'.")
		}
		session, history, err := a.orch.OpenChat(ctx, boot.Sessions[0].ID)
		if err != nil {
			return nil, nil, err
		}
		return session, history, nil
	}
}

func printChatHeader(a *app, session *client.ChatSession) {
	title := session.Title
	if title == "" {
		title = session.ID
	}
	a.out.Bold("%s", title)
	a.out.Dim("Type a question, or /quit to leave.")
}

func renderMessage(a *app, msg client.ChatMessage) {
	switch msg.Role {
	case client.RoleUser:
		a.out.Prompt("you:")
		a.out.Println("%s", msg.Content)
	default:
		a.out.Markdown(msg.Content)
		if msg.TokensUsed > 0 {
			a.out.Dim("(%d tokens, %.1fs)", msg.TokensUsed, msg.ProcessingTime)
		}
	}
}

func chatLoop(ctx context.Context, a *app) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		a.out.Prompt(">")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit", "/q":
			return nil
		}

		reply, err := a.orch.Ask(ctx, line)
		if err != nil {
			// The buffer already holds the fallback reply; show it the
			// same way a real one is shown, then the cause.
			if msgs := a.orch.Conversations().Messages(); len(msgs) > 0 {
				renderMessage(a, msgs[len(msgs)-1])
			}
			a.out.Dim("(%s)", displayError(err))
			if vexaerrors.IsCode(err, vexaerrors.ErrCodeAuthExpired) {
				return err
			}
			continue
		}
		renderMessage(a, *reply)
	}
}

func runSessionsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		sessions, err := a.orch.Conversations().ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			a.out.Dim("No chat sessions yet. Start one with 'vexa chat'.")
			return nil
		}
		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			a.out.Println("%s  %-8s %3d msgs  %s", s.ID, s.Status, s.MessageCount, title)
		}
		return nil
	case "delete", "rm":
		if len(args) != 2 {
			return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "delete needs a session id").
				WithUserMessage("Usage: vexa sessions delete <id>")
		}
		if err := a.orch.CloseChat(ctx, args[1]); err != nil {
			return err
		}
		a.out.Success("Deleted session %s", args[1])
		return nil
	default:
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "unknown sessions subcommand").
			WithContext("subcommand", args[0]).
			WithUserMessage(fmt.Sprintf("Unknown subcommand %q. Try: list, delete.", args[0]))
	}
}
