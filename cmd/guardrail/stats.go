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
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var reset, history bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show validation statistics of the running service",
		Long: `Shows per-level counts and percentages since the service started or
was last reset. --history summarizes the persistent result log instead.
--reset zeroes the counters and needs the admin token when one is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(root.server, root.token)
			out := cmd.OutOrStdout()

			if history {
				var sum store.Summary
				if err := client.do(cmd.Context(), http.MethodGet, "/v1/guardrail/history/summary", nil, &sum); err != nil {
					return err
				}
				if ux.IsMachine() {
					return writeJSON(out, sum)
				}
				_, err := fmt.Fprint(out, ux.RenderSummary(sum))
				return err
			}

			method := http.MethodGet
			if reset {
				method = http.MethodDelete
			}
			var stats guardrail.StatsSnapshot
			if err := client.do(cmd.Context(), method, "/v1/guardrail/stats", nil, &stats); err != nil {
				return err
			}
			if ux.IsMachine() {
				return writeJSON(out, stats)
			}
			_, err := fmt.Fprint(out, ux.RenderStats(stats))
			return err
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the counters")
	cmd.Flags().BoolVar(&history, "history", false, "summarize the result log")
	cmd.MarkFlagsMutuallyExclusive("reset", "history")
	return cmd
}
