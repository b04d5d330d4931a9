// Command vexa is a terminal client for the Vexa document chat service:
// upload PDFs, wait for processing, and hold grounded conversations about
// their contents.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	vexaerrors "github.com/vexaai/vexa/pkg/errors"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	args := os.Args[1:]

	// The only global flag lives before the subcommand.
	if len(args) > 1 && args[0] == "--config" {
		configPath = args[1]
		args = args[2:]
	} else if len(args) > 0 && strings.HasPrefix(args[0], "--config=") {
		configPath = strings.TrimPrefix(args[0], "--config=")
		args = args[1:]
	}

	os.Exit(dispatchSubcommand(args))
}

func dispatchSubcommand(args []string) int {
	if len(args) == 0 {
		printHelp()
		return exitUsage
	}

	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return exitOK
	case "--help", "-h", "help":
		printHelp()
		return exitOK
	case "login":
		return runCommand(runLoginCommand, args[1:])
	case "register":
		return runCommand(runRegisterCommand, args[1:])
	case "logout":
		return runCommand(runLogoutCommand, args[1:])
	case "whoami":
		return runCommand(runWhoamiCommand, args[1:])
	case "status":
		return runCommand(runStatusCommand, args[1:])
	case "docs":
		return runCommand(runDocsCommand, args[1:])
	case "chat":
		return runCommand(runChatCommand, args[1:])
	case "sessions":
		return runCommand(runSessionsCommand, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown flag: %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		}
		fmt.Fprintln(os.Stderr, "Run 'vexa --help' for usage.")
		return exitUsage
	}
}

func runCommand(handler func(context.Context, *app, []string) error, args []string) int {
	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := handler(ctx, a, args); err != nil {
		a.out.Error("%s", displayError(err))
		return exitCodeForError(err)
	}
	return exitOK
}

// displayError prefers the user-facing message when the error carries one.
func displayError(err error) string {
	var ve *vexaerrors.Error
	if errors.As(err, &ve) {
		return ve.Display()
	}
	return err.Error()
}

func printVersion() {
	fmt.Printf("vexa %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printHelp() {
	fmt.Print(`vexa - chat with your documents from the terminal

Usage:
  vexa [--config path] <command> [arguments]

Account:
  register              Create an account
  login                 Sign in and store the session
  logout                Sign out and clear the stored session
  whoami                Show the signed-in user

Documents:
  docs list             List uploaded documents
  docs upload <file>    Upload a PDF (waits for processing with --wait)
  docs show <id>        Show one document
  docs delete <id>      Delete a document

Chat:
  chat                  Open the most recent session, or start from a document
  chat --doc <id>       Start a new session against a processed document
  chat --upload <file>  Upload a PDF and chat with it
  chat --session <id>   Reopen an existing session
  sessions list         List chat sessions
  sessions delete <id>  Delete a session

Other:
  status                Check server health and connection
  version               Print version information

Environment:
  VEXA_API_URL, VEXA_API_TIMEOUT, VEXA_DATA_DIR, VEXA_LOG_LEVEL,
  VEXA_MAX_UPLOAD_MB, VEXA_CREDENTIALS_PATH
`)
}
