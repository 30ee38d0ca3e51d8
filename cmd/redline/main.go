// Command redline applies tracked revisions to .docx documents.
// Edits are supplied as a JSON file and applied as native Word track-changes
// markup (w:del/w:ins plus comments), so reviewers can accept or reject each
// change inside Word.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/ooxml"
	"github.com/FocuswithJustin/redline/core/revision"
	"github.com/FocuswithJustin/redline/internal/logging"
)

const version = "0.2.0"

// CLI defines the command-line interface for redline.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (json, text)" default:"json"`

	Apply   ApplyCmd   `cmd:"" help:"Apply a JSON edit list to a document as tracked changes"`
	Inspect InspectCmd `cmd:"" help:"Print the paragraphs of a document with their indexes"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ApplyCmd applies tracked edits to a document.
type ApplyCmd struct {
	Input  string `arg:"" help:"Path to the .docx to revise" type:"existingfile"`
	Edits  string `help:"Path to the JSON edit request array" short:"e" required:"" type:"existingfile"`
	Out    string `help:"Output path (default: <input>.revised.docx)" short:"o" type:"path"`
	Author string `help:"Author recorded on revision markers and comments"`
}

func (c *ApplyCmd) Run() error {
	docBytes, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	editBytes, err := os.ReadFile(c.Edits)
	if err != nil {
		return fmt.Errorf("read edits: %w", err)
	}
	requests, err := revision.DecodeRequests(editBytes)
	if err != nil {
		return err
	}

	out, report, err := revision.Apply(docBytes, requests, c.Author)
	if err != nil {
		return err
	}

	outPath := c.Out
	if outPath == "" {
		outPath = defaultOutputPath(c.Input)
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	// The report is the command's machine-readable result; logs go to stderr.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	// Partial failure is reported in the JSON details, not the exit code:
	// callers batching many edits inspect the report.
	if report.Failed > 0 {
		logging.Warn("some edits were not applied",
			"failed", report.Failed, "total", report.TotalRequests)
	}
	return nil
}

// defaultOutputPath derives the output name from the input, keeping the
// .docx extension last so Word still opens it.
func defaultOutputPath(input string) string {
	if strings.HasSuffix(strings.ToLower(input), ".docx") {
		return input[:len(input)-len(".docx")] + ".revised.docx"
	}
	return input + ".revised.docx"
}

// InspectCmd prints the visible text of each paragraph. Useful for preparing
// edit lists: source_text values must match what this prints.
type InspectCmd struct {
	Input string `arg:"" help:"Path to the .docx to inspect" type:"existingfile"`
}

func (c *InspectCmd) Run() error {
	docBytes, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	pkg, err := docx.Unpack(docBytes)
	if err != nil {
		return err
	}
	defer pkg.Close()

	data, err := pkg.ReadPart(docx.DocumentPart)
	if err != nil {
		return err
	}
	doc, err := ooxml.Parse(data)
	if err != nil {
		return err
	}

	for i, p := range ooxml.Paragraphs(doc.Root()) {
		text := paragraphText(p)
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Printf("%4d  %s\n", i, text)
	}
	return nil
}

// paragraphText flattens a paragraph the same way the locator sees it:
// direct runs plus hyperlink contents.
func paragraphText(p *ooxml.Node) string {
	var sb strings.Builder
	for _, child := range ooxml.Children(p) {
		switch {
		case ooxml.IsWordEl(child, "r"):
			sb.WriteString(ooxml.RunText(child))
		case ooxml.IsWordEl(child, "hyperlink"):
			for _, run := range ooxml.FindChildren(child, ooxml.NSWordML, "r") {
				sb.WriteString(ooxml.RunText(run))
			}
		}
	}
	return sb.String()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("redline version %s\n", version)
	return nil
}

func parseLogLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("redline"),
		kong.Description("Tracked-changes applicator for .docx documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	format := logging.FormatJSON
	if strings.EqualFold(CLI.LogFormat, "text") {
		format = logging.FormatText
	}
	logging.InitLogger(parseLogLevel(CLI.LogLevel), format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
