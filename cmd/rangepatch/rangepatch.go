package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cespare/xxhash/v2"
	"github.com/kalafut/rangepatch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var CLI struct {
	LogLevel string `name:"log-level" default:"warn" env:"RANGEPATCH_LOG_LEVEL" help:"Log level (debug, info, warn, error)."`

	Make struct {
		OldFile   string        `arg help:"Old file" type:"existingfile"`
		NewFile   string        `arg help:"New file" type:"existingfile"`
		Output    string        `short:"o" help:"Write the patch to this file instead of stdout."`
		Workers   int           `name:"j" default:"10" env:"RANGEPATCH_WORKERS" help:"Number of worker slots."`
		MinMatch  int           `name:"m" default:"5" env:"RANGEPATCH_MIN_MATCH" help:"Shortest common run to keep."`
		TimeLimit time.Duration `name:"t" default:"0s" help:"Max time to build patch (0 for no limit)."`
		Naive     bool          `help:"Fall back to delete+insert when that is shorter."`
		Quiet     bool          `short:"q" help:"Don't print progress or the summary."`
	} `cmd help:"Make a patch file to turn 'old' into 'new'."`

	Apply struct {
		OldFile   *os.File `arg help:"Old file"`
		PatchFile *os.File `arg help:"Patch file"`
		Expect    string   `help:"Fail unless the output has this xxhash64 digest (hex)."`
	} `cmd help:"Apply a patch file."`

	Show struct {
		OldFile  string `arg help:"Old file" type:"existingfile"`
		NewFile  string `arg help:"New file" type:"existingfile"`
		MinMatch int    `name:"m" default:"5" help:"Shortest common run to keep."`
	} `cmd help:"Print the differences between two text files."`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Name("rangepatch"), kong.Description("Byte-level patch maker."))

	logger, err := newLogger(CLI.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch ctx.Command() {
	case "make <old-file> <new-file>":
		err = makeCmd(logger)
	case "apply <old-file> <patch-file>":
		err = applyCmd()
	case "show <old-file> <new-file>":
		err = showCmd(logger)
	default:
		panic(ctx.Command())
	}

	if err != nil {
		logger.Debug("command failed", zap.String("detail", fmt.Sprintf("%+v", err)))
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build()
}

func makeCmd(logger *zap.Logger) error {
	args := CLI.Make

	ctx := context.Background()
	if args.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, args.TimeLimit)
		defer cancel()
	}

	opts := []rangepatch.FuncOption{
		rangepatch.WithWorkers(args.Workers),
		rangepatch.WithMinMatch(args.MinMatch),
		rangepatch.WithLogger(logger),
	}
	if args.Naive {
		opts = append(opts, rangepatch.WithNaiveFallback())
	}

	showProgress := !args.Quiet && term.IsTerminal(int(os.Stderr.Fd()))
	if showProgress {
		opts = append(opts, rangepatch.WithProgress(renderProgress))
	}

	// The patch is held in memory so a failed run leaves no partial output file.
	var patch bytes.Buffer
	rep, err := rangepatch.MakePatch(ctx,
		rangepatch.FileSource(args.OldFile),
		rangepatch.FileSource(args.NewFile),
		&patch,
		opts...,
	)
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	if !args.Quiet {
		printReport(rep)
	}

	return writeOutput(args.Output, patch.Bytes())
}

func writeOutput(path string, patch []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(patch)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(patch); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func renderProgress(p rangepatch.Progress) {
	var sb strings.Builder
	for _, id := range p.IDs() {
		fmt.Fprintf(&sb, " %d:%3.0f%%", id, p.Workers[id])
	}
	fmt.Fprintf(os.Stderr, "\r\x1b[K[%s]%s {%d matches}", p.Elapsed.Truncate(100*time.Millisecond), sb.String(), p.Matches)
}

func printReport(rep rangepatch.Report) {
	fmt.Fprintf(os.Stderr, "old: %d bytes (%016x)\n", rep.OldSize, rep.OldDigest)
	fmt.Fprintf(os.Stderr, "new: %d bytes (%016x)\n", rep.NewSize, rep.NewDigest)
	fmt.Fprintf(os.Stderr, "deleted: %d  inserted: %d  same: %d\n", rep.Deleted, rep.Inserted, rep.Same)
}

func applyCmd() error {
	before, err := io.ReadAll(CLI.Apply.OldFile)
	if err != nil {
		return err
	}
	patch, err := io.ReadAll(CLI.Apply.PatchFile)
	if err != nil {
		return err
	}

	after, err := rangepatch.ApplyPatch(before, patch)
	if err != nil {
		return fmt.Errorf("applying patch: %w", err)
	}

	if CLI.Apply.Expect != "" {
		want, err := strconv.ParseUint(CLI.Apply.Expect, 16, 64)
		if err != nil {
			return fmt.Errorf("bad --expect digest: %w", err)
		}
		if got := xxhash.Sum64(after); got != want {
			return fmt.Errorf("output digest %016x, expected %016x", got, want)
		}
	}

	_, err = os.Stdout.Write(after)
	return err
}

func showCmd(logger *zap.Logger) error {
	before, err := rangepatch.ReadBuffer(rangepatch.FileSource(CLI.Show.OldFile))
	if err != nil {
		return err
	}
	after, err := rangepatch.ReadBuffer(rangepatch.FileSource(CLI.Show.NewFile))
	if err != nil {
		return err
	}

	res, err := rangepatch.Diff(context.Background(), before.Bytes(), after.Bytes(),
		rangepatch.WithMinMatch(CLI.Show.MinMatch),
		rangepatch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	text, err := rangepatch.PrettyText(before.Bytes(), res.Ops)
	if err != nil {
		return err
	}
	dist, err := rangepatch.Distance(before.Bytes(), res.Ops)
	if err != nil {
		return err
	}

	fmt.Println(text)
	fmt.Fprintf(os.Stderr, "%d matches, distance %d\n", len(res.Matches), dist)
	return nil
}
