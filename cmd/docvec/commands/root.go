package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/hupe1980/docvec"
	"github.com/hupe1980/docvec/embed"
)

const apiKeyEnv = "DOCVEC_API_KEY"

// fileConfig mirrors the persistent flags, so defaults can live in a YAML
// file. Flags set explicitly on the command line win.
type fileConfig struct {
	DataDir   string `yaml:"dataDir"`
	IndexSpec string `yaml:"indexSpec"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"baseURL"`
	BatchSize int    `yaml:"batchSize"`
	NProbes   int    `yaml:"nprobes"`
	LogLevel  string `yaml:"logLevel"`
	LogJSON   bool   `yaml:"logJSON"`
}

var rootCmd = &cobra.Command{
	Use:           "docvec",
	Short:         "Vector index with SQLite-backed chunk metadata",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return applyConfigFile(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("data-dir", "data", "directory for index snapshot and metadata database")
	flags.String("index-spec", "Flat", `index layout, e.g. "Flat" or "IVF256,Flat"`)
	flags.String("model", embed.ModelOpenAI3Small, "embedding model")
	flags.Int("dimension", 1536, "embedding dimensionality")
	flags.String("base-url", "", "override the embedding API base URL")
	flags.Int("batch-size", docvec.DefaultBatchSize, "chunks embedded per batch")
	flags.Int("nprobes", docvec.DefaultNProbes, "partitions probed per search (IVF only)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "emit JSON logs")
}

func applyConfigFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := func(flag, value string) error {
		if value == "" || cmd.Flags().Changed(flag) {
			return nil
		}
		return cmd.Flags().Set(flag, value)
	}
	setInt := func(flag string, value int) error {
		if value == 0 || cmd.Flags().Changed(flag) {
			return nil
		}
		return cmd.Flags().Set(flag, fmt.Sprint(value))
	}

	for flag, value := range map[string]string{
		"data-dir":   cfg.DataDir,
		"index-spec": cfg.IndexSpec,
		"model":      cfg.Model,
		"base-url":   cfg.BaseURL,
		"log-level":  cfg.LogLevel,
	} {
		if err := set(flag, value); err != nil {
			return err
		}
	}
	for flag, value := range map[string]int{
		"dimension":  cfg.Dimension,
		"batch-size": cfg.BatchSize,
		"nprobes":    cfg.NProbes,
	} {
		if err := setInt(flag, value); err != nil {
			return err
		}
	}
	if cfg.LogJSON && !cmd.Flags().Changed("log-json") {
		return cmd.Flags().Set("log-json", "true")
	}
	return nil
}

func newLogger(cmd *cobra.Command) (*docvec.Logger, error) {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return nil, err
	}
	if logJSON {
		return docvec.NewJSONLogger(level), nil
	}
	return docvec.NewTextLogger(level), nil
}

// newService wires the OpenAI embedder and the service from the resolved
// flags.
func newService(cmd *cobra.Command) (*docvec.Service, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", apiKeyEnv)
	}

	model, _ := cmd.Flags().GetString("model")
	dimension, _ := cmd.Flags().GetInt("dimension")
	baseURL, _ := cmd.Flags().GetString("base-url")

	embedOpts := []embed.Option{
		embed.WithModel(model),
		embed.WithDimension(dimension),
	}
	if baseURL != "" {
		embedOpts = append(embedOpts, embed.WithBaseURL(baseURL))
	}
	embedder := embed.NewOpenAI(apiKey, embedOpts...)

	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	indexSpec, _ := cmd.Flags().GetString("index-spec")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	nprobes, _ := cmd.Flags().GetInt("nprobes")

	opts := []docvec.Option{
		docvec.WithDataDir(dataDir),
		docvec.WithIndexSpec(indexSpec),
		docvec.WithBatchSize(batchSize),
		docvec.WithNProbes(nprobes),
		docvec.WithLogger(logger),
	}
	if f := cmd.Flags().Lookup("legacy-file"); f != nil && f.Value.String() != "" {
		opts = append(opts, docvec.WithLegacyPath(f.Value.String()))
	}

	return docvec.New(embedder, opts...)
}
