package config

import (
	"flag"
	"os"
)

// Flags are the command-line overrides. Zero values leave the file or default value in place.
type Flags struct {
	ConfigPath string
	Debug      bool
	Width      int
	Height     int
	HDRPath    string
}

var parsed Flags

// ParseFlags parses os.Args into the package-level overrides used by Load. Call this early in main().
func ParseFlags() {
	f, err := ParseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	parsed = f
}

// ParseArgs parses a command line into Flags without touching the package-level overrides.
//
// Parameters:
//   - args: the arguments without the program name
//
// Returns:
//   - Flags: the parsed overrides
//   - error: an error if an argument is malformed
func ParseArgs(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("oxy-pbr", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging and profiling")
	fs.IntVar(&f.Width, "width", 0, "Window width")
	fs.IntVar(&f.Height, "height", 0, "Window height")
	fs.StringVar(&f.HDRPath, "hdr", "", "Path to an equirectangular HDR environment")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// ConfigPath returns the explicit config path if provided via --config.
func ConfigPath() string {
	return parsed.ConfigPath
}

func (f Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
		cfg.Profiling.Enabled = true
	}
	if f.Width > 0 {
		cfg.Window.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Window.Height = f.Height
	}
	if f.HDRPath != "" {
		cfg.Environment.HDRPath = f.HDRPath
	}
}
