// Package driver ties the textual IR front end, the dataflow analyzer
// and the report renderer together for the command line tools.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reliftlabs/relift/internal/arch"
	"github.com/reliftlabs/relift/internal/dflow"
	"github.com/reliftlabs/relift/internal/ir"
	"github.com/reliftlabs/relift/internal/parse"
	"github.com/reliftlabs/relift/internal/report"
)

// DefaultConfigPath is where the tools look for a configuration file.
const DefaultConfigPath = ".relift.yaml"

// Config is the tool configuration stored in .relift.yaml.
type Config struct {
	Name      string `yaml:"name"`
	ByteOrder string `yaml:"byte-order"`
	Progress  bool   `yaml:"progress"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Name:      "relift",
		ByteOrder: "little",
		Progress:  true,
	}
}

// LoadConfig reads the configuration file at path. A missing file yields
// the default configuration.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

// Architecture returns the target description the configuration selects.
func (c Config) Architecture() (arch.Architecture, error) {
	switch c.ByteOrder {
	case "", "little":
		return arch.NewGeneric(arch.LittleEndian), nil
	case "big":
		return arch.NewGeneric(arch.BigEndian), nil
	}
	return nil, fmt.Errorf("unknown byte order %q", c.ByteOrder)
}

// Result holds the analysis outcome for one function.
type Result struct {
	Function *ir.Function
	Dataflow *dflow.Dataflow
}

// AnalyzeFile parses one textual IR file and analyzes every function in
// it.
func AnalyzeFile(ctx context.Context, logger *zap.Logger, config Config, path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	funcs, err := parse.File(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	architecture, err := config.Architecture()
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if config.Progress && len(funcs) > 1 {
		bar = progressbar.NewOptions(len(funcs),
			progressbar.OptionSetDescription(path),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	results := make([]Result, 0, len(funcs))
	for _, fn := range funcs {
		dataflow := dflow.NewDataflow()
		analyzer := dflow.NewAnalyzer(dataflow, architecture, logger)
		if err := analyzer.Analyze(ctx, fn); err != nil {
			return nil, fmt.Errorf("%s: analyzing %s: %w", path, fn.Name(), err)
		}
		results = append(results, Result{Function: fn, Dataflow: dataflow})
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return results, nil
}

// ProcessFiles analyzes every file and writes the rendered facts to out.
func ProcessFiles(ctx context.Context, logger *zap.Logger, config Config, paths []string, out io.Writer) error {
	for _, path := range paths {
		results, err := AnalyzeFile(ctx, logger, config, path)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing file", zap.String("path", path), zap.Error(err))
			}
			return err
		}
		for _, res := range results {
			if _, err := io.WriteString(out, report.FormatFunction(res.Function, res.Dataflow)); err != nil {
				return err
			}
		}
	}
	return nil
}
