package pipeline

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docweave/internal/config"
	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/plot"
	"github.com/dgallion1/docweave/internal/weave"
)

// DocumentOptions maps weave settings onto document options. Each call
// gets its own plotter, so documents never share figure state.
func DocumentOptions(cfg config.WeaveConfig, reg *dialect.Registry, stdout io.Writer, log *slog.Logger) weave.Options {
	opts := weave.Options{
		Dialect:    cfg.Dialect,
		FigDir:     cfg.FigDir,
		TangleExt:  cfg.TangleExt,
		Registry:   reg,
		Timeout:    cfg.ChunkTimeout,
		MaxTimeout: cfg.MaxChunkTimeout,
		Stdout:     stdout,
		Logger:     log,
	}
	if cfg.Plot {
		p := plot.New()
		if cfg.PlotWidth > 0 {
			p.Width = cfg.PlotWidth
		}
		if cfg.PlotHeight > 0 {
			p.Height = cfg.PlotHeight
		}
		opts.Plotter = p
	}
	return opts
}

// LoadRegistry returns the built-in dialects plus those in cfg.DialectsFile.
func LoadRegistry(cfg config.WeaveConfig) (*dialect.Registry, error) {
	reg := dialect.NewRegistry()
	if cfg.DialectsFile != "" {
		if _, err := reg.LoadCUE(cfg.DialectsFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// figuresDir is the job directory holding saved figures, and the path
// figures are referenced under in woven output served to clients.
const figuresDir = "figures"

// RelativeFigures rewrites figure references below figDir to
// figures/<name>, so woven text never exposes host paths. Relative to the
// job output URL they resolve to the job's figure route.
func RelativeFigures(woven, figDir string) string {
	return strings.ReplaceAll(woven, filepath.Clean(figDir)+string(filepath.Separator), figuresDir+"/")
}
