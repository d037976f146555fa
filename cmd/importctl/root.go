package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"statement-import-backend/internal/config"
	"statement-import-backend/internal/parser"
)

// sourceFlags select how a statement file is read.
type sourceFlags struct {
	profilesPath string
	profile      string
	fileType     string
	configJSON   string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profilesPath, "profiles", os.Getenv("PARSE_PROFILES"), "YAML file with parse profiles")
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "parse profile name")
	cmd.Flags().StringVarP(&f.fileType, "type", "t", "", "file type (csv, xlsx, qif, ofx); detected from the extension when empty")
	cmd.Flags().StringVarP(&f.configJSON, "config", "c", "", "parser config as JSON")
}

// resolve returns the format and parser config for file.
func (f *sourceFlags) resolve(file string) (parser.Format, parser.Config, error) {
	var cfg parser.Config
	name := f.fileType
	if f.profile != "" {
		profiles, err := config.LoadProfiles(f.profilesPath)
		if err != nil {
			return "", cfg, err
		}
		p, ok := profiles.Lookup(f.profile)
		if !ok {
			return "", cfg, fmt.Errorf("unknown profile %q", f.profile)
		}
		cfg = p.Config
		if name == "" {
			name = p.Format
		}
	}
	if f.configJSON != "" {
		if err := json.Unmarshal([]byte(f.configJSON), &cfg); err != nil {
			return "", cfg, fmt.Errorf("invalid --config: %w", err)
		}
	}
	if name != "" {
		format, err := parser.ParseFormat(name)
		return format, cfg, err
	}
	format, err := parser.DetectFormat(file)
	return format, cfg, err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Parse and analyze bank statement exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newParseCmd(), newAnalyzeCmd(), newReapCmd())
	return root
}
