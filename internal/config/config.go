package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Flatten modes
	FlattenBake = "bake"
	FlattenLock = "lock"
	FlattenNone = "none"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultFlatten        = FlattenBake
	DefaultRenderWidth    = 800.0
	DefaultMaxSignaturePx = 2000
	DefaultOutputPrefix   = "edited_"
	DefaultSampleDataFile = "form-fields.json"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the PDF MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string

	// Form filling configuration
	Flatten        string  // "bake", "lock" or "none"
	RenderWidth    float64 // preview width field rectangles are reported in
	SampleDataPath string  // companion {name,label,value} file
	MaxSignaturePx int     // longest edge of an embedded signature image
	OutputPrefix   string  // prepended to the source name when saving

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	ConfigFile  string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFDirectory:   currentDir,
		Flatten:        DefaultFlatten,
		RenderWidth:    DefaultRenderWidth,
		MaxSignaturePx: DefaultMaxSignaturePx,
		OutputPrefix:   DefaultOutputPrefix,
		Version:        "1.0.0",
		ServerName:     "mcp-pdf-filler",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if err := readConfigFile(); err != nil {
		return nil, err
	}

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}
	if cfg.SampleDataPath == "" {
		cfg.SampleDataPath = filepath.Join(cfg.PDFDirectory, DefaultSampleDataFile)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("MCP_PDF")
	viper.AutomaticEnv()

	// Define flags with Viper
	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("flatten", cfg.Flatten)
	viper.SetDefault("renderwidth", cfg.RenderWidth)
	viper.SetDefault("sampledata", cfg.SampleDataPath)
	viper.SetDefault("maxsignaturepx", cfg.MaxSignaturePx)
	viper.SetDefault("outputprefix", cfg.OutputPrefix)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("flatten", cfg.Flatten, "Form handling on export: 'bake', 'lock' or 'none'")
	pflag.Float64("renderwidth", cfg.RenderWidth, "Preview width field rectangles are reported in (0 = page points)")
	pflag.String("sampledata", cfg.SampleDataPath, "Sample data file (default <dir>/form-fields.json)")
	pflag.Int("maxsignaturepx", cfg.MaxSignaturePx, "Longest edge in pixels of embedded signature images")
	pflag.String("outputprefix", cfg.OutputPrefix, "Prefix for saved output file names")
	pflag.String("config", "", "Optional configuration file (toml, yaml or json)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize",
		"flatten", "renderwidth", "sampledata", "maxsignaturepx", "outputprefix", "config",
	} {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// readConfigFile merges the optional --config file. Flags and environment
// variables still take precedence over its values.
func readConfigFile() error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Filler - A Model Context Protocol server for filling, signing and flattening PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs --flatten=lock      "+
			"# keep fields, mark them read-only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/pdfs       # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config=filler.toml                    # settings from a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_DIR            PDF directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXFILESIZE    Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_FLATTEN        Flatten mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_RENDERWIDTH    Preview width\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_SAMPLEDATA     Sample data file\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXSIGNATUREPX Signature pixel bound\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_OUTPUTPREFIX   Output name prefix\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Flatten = strings.ToLower(viper.GetString("flatten"))
	cfg.RenderWidth = viper.GetFloat64("renderwidth")
	cfg.SampleDataPath = viper.GetString("sampledata")
	cfg.MaxSignaturePx = viper.GetInt("maxsignaturepx")
	cfg.OutputPrefix = viper.GetString("outputprefix")
	cfg.ConfigFile = viper.GetString("config")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	switch c.Flatten {
	case FlattenBake, FlattenLock, FlattenNone:
	default:
		return fmt.Errorf("invalid flatten mode: %s (must be one of: bake, lock, none)", c.Flatten)
	}

	if c.RenderWidth < 0 {
		return errors.New("render width cannot be negative")
	}

	if c.MaxSignaturePx < 16 {
		return errors.New("maximum signature size must be at least 16 pixels")
	}

	if strings.ContainsAny(c.OutputPrefix, `/\`) {
		return errors.New("output prefix cannot contain path separators")
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Flatten: %s, RenderWidth: %g, SampleData: %s, MaxSignaturePx: %d, OutputPrefix: %q}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Flatten, c.RenderWidth, c.SampleDataPath, c.MaxSignaturePx, c.OutputPrefix)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
