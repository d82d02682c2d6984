// internal/commands/root.go
// Package commands wires the ragline CLI: ingest, chat, health, and web.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// configDefaults registers every config key with viper so environment
// overrides (RAGLINE_<KEY>) resolve even for keys absent from the config
// file. Values mirror appconfig.ApplyDefaults where a default exists.
var configDefaults = map[string]any{
	"knowledgeBaseDir":      "knowledge_base",
	"indexDir":              "index",
	"recursive":             true,
	"chunkSize":             1000,
	"chunkOverlap":          100,
	"searchK":               3,
	"contextTokenLimit":     0,
	"backend":               "ollama",
	"backendUrl":            "http://localhost:11434",
	"generateModel":         "llama3",
	"embeddingModel":        "nomic-embed-text",
	"timeout":               0,
	"apiKeyEnv":             "",
	"maxRetries":            0,
	"retryBaseDelaySeconds": 0.0,
	"minQueryLength":        2,
	"maxQueryLength":        2000,
	"enableCache":           false,
	"cacheTtl":              0,
	"webAddr":               "",
	"debug":                 false,
	"logFile":               "",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "ragline",
	Short:        "ragline — retrieval-augmented chat over your own documents",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		cfg, err := unmarshalConfig()
		if err != nil {
			return err
		}
		currentConfig = cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetDebug(cfg.Debug)
		if cfg.Debug {
			pp.Fprintln(os.Stderr, *cfg)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("backend", "", `generation backend ("ollama" or "openai")`)
	rootCmd.PersistentFlags().String("backendUrl", "", "base URL of the generation backend")
	rootCmd.PersistentFlags().String("generateModel", "", "generation model name")
	rootCmd.PersistentFlags().String("embeddingModel", "", "embedding model name")
	rootCmd.PersistentFlags().String("indexDir", "", "directory holding the vector index")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("logFile"))
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("backendUrl", rootCmd.PersistentFlags().Lookup("backendUrl"))
	_ = viper.BindPFlag("generateModel", rootCmd.PersistentFlags().Lookup("generateModel"))
	_ = viper.BindPFlag("embeddingModel", rootCmd.PersistentFlags().Lookup("embeddingModel"))
	_ = viper.BindPFlag("indexDir", rootCmd.PersistentFlags().Lookup("indexDir"))
}

// initConfig loads .env (if present), points viper at the config file, and
// enables RAGLINE_* environment overrides. Precedence, highest first:
// flags, environment, config file, defaults.
func initConfig() {
	_ = godotenv.Load()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetEnvPrefix("RAGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, value := range configDefaults {
		viper.SetDefault(key, value)
	}
}

// ensureConfigLoaded reads the config file. A missing file is tolerated;
// defaults, environment, and flags take over.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// unmarshalConfig decodes viper's merged settings into a validated Config.
// Weak typing lets environment-variable strings fill numeric fields.
func unmarshalConfig() (*appconfig.Config, error) {
	var cfg appconfig.Config
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = cfgFile
	appconfig.ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// getConfig returns the configuration loaded by PersistentPreRunE.
func getConfig() *appconfig.Config {
	return currentConfig
}
