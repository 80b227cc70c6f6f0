package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/pipeline"
	"github.com/dgallion1/docweave/internal/publish"
	"github.com/dgallion1/docweave/internal/watch"
	"github.com/dgallion1/docweave/internal/weave"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.starlark.net/starlark"
)

type weaveFlags struct {
	output  string
	html    bool
	docx    bool
	watch   bool
	dumpEnv bool
}

// publishDialect is the dialect HTML and DOCX are rendered from.
const publishDialect = "pandoc"

func newWeaveCmd(a *app) *cobra.Command {
	var f weaveFlags
	cmd := &cobra.Command{
		Use:   "weave <file>",
		Short: "Execute a literate document and write the woven output",
		Long: "weave runs every code chunk of <file> in one session and writes the woven " +
			"document next to it, with the extension of the selected dialect. " +
			"--html and --docx weave in the pandoc dialect and publish the result.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.weave(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.String("dialect", "", "output dialect (default: front matter, then file extension)")
	flags.String("dialects-file", "", "CUE file with custom dialects")
	flags.String("fig-dir", "", "figure directory (default: front matter, then figures)")
	flags.Duration("timeout", 0, "per-chunk execution limit, 0 for none")
	flags.Bool("no-plot", false, "run without the figure builtins")
	flags.StringVarP(&f.output, "output", "o", "", "woven output path")
	flags.BoolVar(&f.html, "html", false, "also publish the woven document as HTML")
	flags.BoolVar(&f.docx, "docx", false, "also publish the woven document as DOCX")
	flags.BoolVarP(&f.watch, "watch", "w", false, "weave again whenever the source changes")
	flags.BoolVar(&f.dumpEnv, "dump-env", false, "print the global environment after running")
	return cmd
}

func (a *app) weave(cmd *cobra.Command, source string, f weaveFlags) error {
	reg, err := pipeline.LoadRegistry(a.cfg.Weave)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	build := func(ctx context.Context) error {
		return a.weaveOnce(ctx, stdout, reg, source, f)
	}

	if !f.watch {
		return build(cmd.Context())
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch.Run(ctx, source, a.log, build)
}

func (a *app) weaveOnce(ctx context.Context, stdout io.Writer, reg *dialect.Registry, source string, f weaveFlags) error {
	opts := pipeline.DocumentOptions(a.cfg.Weave, reg, stdout, a.log)
	opts.Sink = f.output
	publishing := f.html || f.docx
	if publishing {
		if opts.Dialect == "" {
			opts.Dialect = publishDialect
		} else if opts.Dialect != publishDialect {
			a.log.Warn("publishing expects Markdown, the output may not render", "dialect", opts.Dialect)
		}
	}

	doc := weave.New(source, opts)
	err := doc.Weave(ctx)
	if f.dumpEnv {
		dumpEnv(stdout, doc.Globals())
	}
	if err != nil {
		return err
	}

	if f.html {
		if err := publishDocument(ctx, stdout, doc, ".html"); err != nil {
			return err
		}
	}
	if f.docx {
		return publishDocument(ctx, stdout, doc, ".docx")
	}
	return nil
}

// publishDocument renders the woven document next to its sink.
func publishDocument(ctx context.Context, stdout io.Writer, doc *weave.Document, ext string) error {
	sink := doc.Sink()
	dst := strings.TrimSuffix(sink, filepath.Ext(sink)) + ext
	p, err := publish.ForFile(dst)
	if err != nil {
		return err
	}
	woven, err := doc.Render(ctx)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	meta := publish.Meta{
		Title: doc.FrontMatter().Title,
		Name:  doc.Source(),
	}
	if err := p.Publish(out, []byte(woven), meta); err != nil {
		out.Close()
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Published %s to %s\n", sink, dst)
	return nil
}

func dumpEnv(w io.Writer, env starlark.StringDict) {
	names := lo.Keys(env)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s = %s\n", name, env[name].String())
	}
}
