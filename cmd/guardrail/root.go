// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/config"
)

const defaultServerURL = "http://localhost:12230"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	output     string
	envFile    string
	server     string
	token      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "guardrail",
		Short: "Score RAG answers for grounding and hallucination risk",
		Long: `guardrail checks generated answers against the documents they were
generated from. It scores confidence, flags hallucination-indicating
phrasing and classifies each answer as high, medium, low or
hallucination_risk.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			if opts.output != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(opts.output))
			} else {
				ux.InitPersonality(os.Stdout)
			}
			if opts.server == "" {
				opts.server = envOr("GUARDRAIL_SERVER", defaultServerURL)
			}
			if opts.token == "" {
				opts.token = os.Getenv("GUARDRAIL_ADMIN_TOKEN")
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.aleutian/guardrail.yaml)")
	pf.StringVarP(&opts.output, "output", "o", "", "output style: standard, minimal or machine")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before anything else; missing files are ignored")
	pf.StringVar(&opts.server, "server", "", "guardrail service URL (default $GUARDRAIL_SERVER or "+defaultServerURL+")")
	pf.StringVar(&opts.token, "token", "", "admin bearer token (default $GUARDRAIL_ADMIN_TOKEN)")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newStatsCmd(opts),
		newConfigCmd(opts),
		newInstructionsCmd(),
	)
	return root
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// resolveConfigPath returns the --config flag, $GUARDRAIL_CONFIG or the
// default path, in that order.
func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	if p := os.Getenv("GUARDRAIL_CONFIG"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies environment overrides.
//
// # Inputs
//
//   - create: Write the default config when the file does not exist.
//     Without create a missing file yields DefaultFile and an empty path.
//
// # Outputs
//
//   - *config.File: The effective configuration.
//   - string: The file the config came from, "" when defaults were used.
//   - error: Read, parse or validation failure.
func (o *rootOptions) loadConfig(create bool) (*config.File, string, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, "", err
	}

	file, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !create {
			def := config.DefaultFile()
			file, path, err = &def, "", nil
		} else {
			if err := config.WriteDefault(path); err != nil {
				return nil, "", err
			}
			slog.Info("wrote default config", slog.String("path", path))
			file, err = config.Load(path)
		}
	}
	if err != nil {
		return nil, "", err
	}
	if err := file.ApplyEnv(); err != nil {
		return nil, "", err
	}
	return file, path, nil
}

// newEngine builds a guardrail system from the engine section and pattern
// library of file.
func newEngine(file *config.File, logger *slog.Logger) (*guardrail.System, error) {
	set, err := file.PatternSet()
	if err != nil {
		return nil, err
	}
	return guardrail.New(
		guardrail.WithConfig(file.Engine),
		guardrail.WithPatterns(set),
		guardrail.WithLogger(logger),
	)
}
