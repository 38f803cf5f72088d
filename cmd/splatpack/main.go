// Command splatpack loads a Gaussian splat scene, optionally transforms and clips it,
// and writes it back out as .splat rows or a plain PLY.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/profiler"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "splatpack:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "splatpack:", err)
		os.Exit(1)
	}
}

// run executes one conversion described by cfg. Logs and timings go to logOut.
func run(ctx context.Context, cfg Config, logOut io.Writer) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	var prof *profiler.Profiler
	if cfg.Profile {
		prof = profiler.NewProfiler()
	}

	opts := []loader.LoaderBuilderOption{
		loader.WithFormat(cfg.Format),
		loader.WithSphericalHarmonics(cfg.SH),
		loader.WithQuantized(cfg.Quantized),
		loader.WithProfiler(prof),
	}
	var sceneOpts []scene.SceneBuilderOption
	if cfg.Workers > 0 {
		opts = append(opts, loader.WithWorkers(cfg.Workers))
		sceneOpts = append(sceneOpts, scene.WithWorkers(cfg.Workers))
	}
	if cfg.Verbose {
		last := -1
		opts = append(opts, loader.WithProgress(func(fraction float64, done bool) {
			pct := int(fraction * 100)
			if done || pct/10 != last/10 {
				common.Logger().Debug("reading", "input", cfg.Input, "percent", pct, "done", done)
				last = pct
			}
		}))
	}

	l := loader.NewLoader(opts...)
	s := scene.NewScene(strings.TrimSuffix(filepath.Base(cfg.Output), filepath.Ext(cfg.Output)), sceneOpts...)

	var err error
	if strings.HasPrefix(cfg.Input, "http://") || strings.HasPrefix(cfg.Input, "https://") {
		err = l.LoadURL(ctx, cfg.Input, s)
	} else {
		err = l.Load(ctx, cfg.Input, s)
	}
	if err != nil {
		return err
	}

	if err := transform(cfg, s); err != nil {
		return err
	}

	prof.Begin("write")
	err = write(cfg, s)
	prof.End()
	if err != nil {
		return err
	}

	for _, st := range prof.Stages() {
		fmt.Fprintf(logOut, "%-10s %10s heap=%.1fMB alloc=%.1fMB gc=%d\n", st.Name, st.Duration, st.HeapMB, st.AllocMB, st.GCCount)
	}
	if prof != nil {
		fmt.Fprintf(logOut, "%-10s %10s\n", "total", prof.Total())
	}
	return nil
}

// transform applies the configured edits in a fixed order: scale, rotate, translate, clip, bake.
func transform(cfg Config, s scene.Scene) error {
	if cfg.Scale != nil {
		s.Scale(mgl32.Vec3(*cfg.Scale))
	}
	if r := cfg.Rotate; r != nil {
		axis := mgl32.Vec3{r[1], r[2], r[3]}
		if axis.Len() == 0 {
			return errors.New("rotation axis has no length")
		}
		s.Rotate(mgl32.QuatRotate(mgl32.DegToRad(r[0]), axis.Normalize()))
	}
	if cfg.Translate != nil {
		s.Translate(mgl32.Vec3(*cfg.Translate))
	}
	if b := cfg.LimitBox; b != nil {
		if err := s.LimitBox(b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2]); err != nil {
			return err
		}
	}
	if cfg.BakeEye != nil {
		s.BakeView(mgl32.Vec3(*cfg.BakeEye))
	}
	return nil
}

// write exports s to cfg.Output. A .zst suffix or cfg.Compress adds a zstd layer and
// the remaining extension picks the layout.
func write(cfg Config, s scene.Scene) (err error) {
	name := cfg.Output
	compress := cfg.Compress
	if strings.HasSuffix(strings.ToLower(name), ".zst") {
		name = name[:len(name)-len(".zst")]
		compress = true
	}

	export := s.Export
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".splat":
	case ".ply":
		export = s.ExportPLY
	default:
		return fmt.Errorf("output %q: want a .splat or .ply extension", cfg.Output)
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		// A failed export leaves no partial output behind.
		if err != nil {
			os.Remove(cfg.Output)
		}
	}()

	if compress {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		if err := export(enc); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return export(f)
}
