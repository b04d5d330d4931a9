package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/document"
	vexaerrors "github.com/vexaai/vexa/pkg/errors"
)

func runDocsCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		return docsList(ctx, a)
	case "upload":
		return docsUpload(ctx, a, args[1:])
	case "show", "get":
		return docsShow(ctx, a, args[1:])
	case "delete", "rm":
		return docsDelete(ctx, a, args[1:])
	default:
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "unknown docs subcommand").
			WithContext("subcommand", args[0]).
			WithUserMessage(fmt.Sprintf("Unknown subcommand %q. Try: list, upload, show, delete.", args[0]))
	}
}

func docsList(ctx context.Context, a *app) error {
	docs, err := a.orch.Documents().List(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.out.Dim("No documents yet. Upload one with 'vexa docs upload <file.pdf>'.")
		return nil
	}

	for _, d := range docs {
		a.out.Println("%s  %-12s %s", d.ID, statusLabel(d), d.OriginalFilename)
	}
	return nil
}

func statusLabel(d client.Document) string {
	switch {
	case d.Processed():
		return "ready"
	case d.Failed():
		return "failed"
	default:
		return d.Status
	}
}

func docsUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("docs upload", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "block until processing finishes")
	if err := fs.Parse(args); err != nil {
		return vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "parse upload flags")
	}
	if fs.NArg() != 1 {
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "upload needs exactly one file").
			WithUserMessage("Usage: vexa docs upload [--wait] <file.pdf>")
	}

	path := fs.Arg(0)
	documentID, err := uploadFile(ctx, a, path)
	if err != nil {
		return err
	}
	a.out.Success("Uploaded %s (document %s)", filepath.Base(path), documentID)

	if !*wait {
		a.out.Dim("Processing in the background. Check with 'vexa docs show %s'.", documentID)
		return nil
	}

	a.out.Dim("Waiting for processing...")
	doc, err := a.orch.AwaitProcessed(ctx, documentID, 2*time.Second)
	if err != nil {
		return err
	}
	a.out.Success("Processed: %d pages, %d chunks", doc.PageCount, doc.TotalChunks)
	return nil
}

// uploadFile validates locally and streams the file to the server,
// returning the new document id.
func uploadFile(ctx context.Context, a *app, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "stat upload file").
			WithUserMessage(fmt.Sprintf("Cannot read %q.", path))
	}
	if err := document.ValidateUpload(info.Name(), info.Size(), a.cfg.MaxUploadBytes()); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", vexaerrors.Wrap(err, vexaerrors.ErrCodeInvalidInput, "open upload file").
			WithUserMessage(fmt.Sprintf("Cannot read %q.", path))
	}
	defer f.Close()

	return a.orch.Documents().Upload(ctx, info.Name(), f)
}

func docsShow(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "show needs a document id").
			WithUserMessage("Usage: vexa docs show <id>")
	}

	doc, err := a.orch.Documents().Get(ctx, args[0])
	if err != nil {
		return err
	}

	a.out.Bold("%s", doc.OriginalFilename)
	a.out.Println("ID:      %s", doc.ID)
	a.out.Println("Status:  %s", statusLabel(*doc))
	a.out.Println("Size:    %d bytes", doc.FileSize)
	if doc.Processed() {
		a.out.Println("Pages:   %d", doc.PageCount)
		a.out.Println("Chunks:  %d", doc.TotalChunks)
	}
	if doc.Failed() && doc.ErrorMessage != "" {
		a.out.Error("Processing error: %s", doc.ErrorMessage)
	}
	if doc.PreviewText != "" {
		a.out.Dim("%s", doc.PreviewText)
	}
	return nil
}

func docsDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return vexaerrors.New(vexaerrors.ErrCodeInvalidInput, "delete needs a document id").
			WithUserMessage("Usage: vexa docs delete <id>")
	}
	if err := a.orch.Documents().Delete(ctx, args[0]); err != nil {
		return err
	}
	a.out.Success("Deleted document %s", args[0])
	return nil
}
