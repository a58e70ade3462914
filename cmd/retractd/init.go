package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/retractd/internal/embeddings"
	"github.com/fyrsmithlabs/retractd/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	initForce     bool
	initNoRuntime bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite the config file and re-download the ONNX runtime")
	initCmd.Flags().BoolVar(&initNoRuntime, "no-runtime", false, "Skip the ONNX runtime download (remote embedding providers)")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare config, database and the local embedding runtime",
	Long: `Prepare a retractd installation:

  1. write ~/.config/retractd/config.yaml with defaults (mode 0600)
  2. create and migrate the SQLite database
  3. download the ONNX runtime used by the fastembed provider

Existing files are kept unless --force is given.

Examples:
  retractd init
  retractd init --no-runtime   # embeddings via TEI or OpenAI`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

const defaultConfigYAML = `# retractd configuration. Environment variables (RETRACTD_SECTION_FIELD)
# override these values.
cache:
  backend: redis        # redis or memory
  addr: localhost:6379
  default_ttl: 7d
embeddings:
  provider: fastembed   # fastembed, tei or openai
  key_mode: full        # full or prefix
similarity:
  top_k: 10
  threshold: 0.5
cluster:
  min_size: 2
logging:
  level: info
  format: console
telemetry:
  enabled: false
  endpoint: localhost:4317
`

func runInit(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "retractd", "config.yaml")
	}
	wrote, err := writeDefaultConfig(path, initForce)
	if err != nil {
		return err
	}
	if wrote {
		cmd.Printf("Wrote default config to %s\n", path)
	} else {
		cmd.Printf("Config already exists at %s\n", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := store.Open(cmd.Context(), cfg.Store.Path, zap.NewNop())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	version, err := st.SchemaVersion(cmd.Context())
	if closeErr := st.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	cmd.Printf("Database ready at %s (schema v%d)\n", cfg.Store.Path, version)

	if initNoRuntime || (cfg.Embeddings.Provider != "fastembed" && cfg.Embeddings.Provider != "") {
		return nil
	}
	installer := embeddings.NewRuntimeInstaller(zap.NewNop())
	if !initForce {
		if lib := installer.LibraryPath(); lib != "" {
			cmd.Printf("ONNX runtime already installed at %s (use --force to re-download)\n", lib)
			return nil
		}
	}
	cmd.Printf("Downloading ONNX runtime v%s...\n", installer.Version)
	lib, err := installer.Install(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to download ONNX runtime: %w", err)
	}
	cmd.Printf("Installed ONNX runtime to %s\n", lib)
	return nil
}

// writeDefaultConfig creates path with owner-only permissions, which the
// config loader requires. It reports whether the file was written.
func writeDefaultConfig(path string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return false, err
	}
	return true, nil
}
