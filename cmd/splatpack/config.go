package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Box is the clipping volume of the config file.
type Box struct {
	Min [3]float32 `toml:"min"`
	Max [3]float32 `toml:"max"`
}

// Config drives one splatpack run. It is read from an optional TOML file and
// overlaid by the command line flags that were set explicitly.
type Config struct {
	Input     string `toml:"input"`
	Output    string `toml:"output"`
	Format    string `toml:"format"`
	SH        bool   `toml:"sh"`
	Quantized bool   `toml:"quantized"`
	Workers   int    `toml:"workers"`
	Compress  bool   `toml:"compress"`
	Verbose   bool   `toml:"verbose"`
	Profile   bool   `toml:"profile"`

	Translate *[3]float32 `toml:"translate"`
	Rotate    *[4]float32 `toml:"rotate"` // angle in degrees, then the axis
	Scale     *[3]float32 `toml:"scale"`
	LimitBox  *Box        `toml:"limit_box"`
	BakeEye   *[3]float32 `toml:"bake_eye"`
}

func defaultConfig() Config {
	return Config{SH: true}
}

// loadConfigFile overlays the TOML file at path on cfg. Unknown keys are rejected.
func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config %s: %s", path, strict.String())
		}
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// parseFloats parses exactly n comma separated floats.
func parseFloats(s string, n int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated numbers, got %q", n, s)
	}
	out := make([]float32, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", p, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseConfig reads the flags in args, loads the config file they name and applies
// every explicitly set flag on top of it.
func parseConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("splatpack", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "TOML config file")
		input      = fs.String("in", "", "input scene: path or http(s) URL (.ply, .splat, optionally .zst)")
		output     = fs.String("out", "", "output file (.splat or .ply, optionally .zst)")
		format     = fs.String("format", "", `format transform: "" or "polycam"`)
		withSH     = fs.Bool("sh", true, "keep higher order spherical harmonics")
		quantized  = fs.Bool("quantized", false, "force the quantized PLY decoder")
		workers    = fs.Int("workers", 0, "worker goroutines, 0 for one per spare CPU")
		compress   = fs.Bool("compress", false, "zstd compress the output")
		verbose    = fs.Bool("v", false, "debug logging")
		profile    = fs.Bool("profile", false, "print stage timings")
		translate  = fs.String("translate", "", "translation x,y,z")
		rotate     = fs.String("rotate", "", "rotation degrees,ax,ay,az")
		scale      = fs.String("scale", "", "scale x,y,z")
		box        = fs.String("box", "", "clip box xmin,xmax,ymin,ymax,zmin,zmax")
		bake       = fs.String("bake", "", "bake SH colors seen from eye x,y,z")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "in":
			cfg.Input = *input
		case "out":
			cfg.Output = *output
		case "format":
			cfg.Format = *format
		case "sh":
			cfg.SH = *withSH
		case "quantized":
			cfg.Quantized = *quantized
		case "workers":
			cfg.Workers = *workers
		case "compress":
			cfg.Compress = *compress
		case "v":
			cfg.Verbose = *verbose
		case "profile":
			cfg.Profile = *profile
		case "translate":
			var v []float32
			if v, err = parseFloats(*translate, 3); err == nil {
				cfg.Translate = &[3]float32{v[0], v[1], v[2]}
			}
		case "rotate":
			var v []float32
			if v, err = parseFloats(*rotate, 4); err == nil {
				cfg.Rotate = &[4]float32{v[0], v[1], v[2], v[3]}
			}
		case "scale":
			var v []float32
			if v, err = parseFloats(*scale, 3); err == nil {
				cfg.Scale = &[3]float32{v[0], v[1], v[2]}
			}
		case "box":
			var v []float32
			if v, err = parseFloats(*box, 6); err == nil {
				cfg.LimitBox = &Box{Min: [3]float32{v[0], v[2], v[4]}, Max: [3]float32{v[1], v[3], v[5]}}
			}
		case "bake":
			var v []float32
			if v, err = parseFloats(*bake, 3); err == nil {
				cfg.BakeEye = &[3]float32{v[0], v[1], v[2]}
			}
		}
		if err != nil {
			err = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if err != nil {
		return Config{}, err
	}

	if cfg.Input == "" || cfg.Output == "" {
		return Config{}, errors.New("both an input and an output are required")
	}
	return cfg, nil
}
