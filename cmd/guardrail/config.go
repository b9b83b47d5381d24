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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/config"
)

// configReport is the machine-readable outcome of config check.
type configReport struct {
	Path        string `json:"path"`
	Valid       bool   `json:"valid"`
	Fingerprint string `json:"fingerprint"`
	Patterns    int    `json:"patterns"`
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the guardrail config file",
	}
	cmd.AddCommand(newConfigCheckCmd(root), newConfigInitCmd(root))
	return cmd
}

func newConfigCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a config file and print its fingerprint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configArg(root, args)
			if err != nil {
				return err
			}
			file, err := config.Load(path)
			if err != nil {
				return err
			}
			system, err := newEngine(file, slog.Default())
			if err != nil {
				return err
			}
			snap := system.Snapshot()

			report := configReport{
				Path:        path,
				Valid:       true,
				Fingerprint: snap.Fingerprint,
				Patterns:    len(snap.Patterns),
			}
			if ux.IsMachine() {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			ux.Success(fmt.Sprintf("%s is valid (%d patterns, fingerprint %s)", path, report.Patterns, report.Fingerprint))
			return nil
		},
	}
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config, including the built-in pattern library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configArg(root, args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			ux.Success("wrote " + path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configArg(root *rootOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return root.resolveConfigPath()
}
