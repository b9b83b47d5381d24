// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guardrail validates RAG answers against their source context.
//
// # Usage
//
//	# Run the HTTP service (writes ~/.aleutian/guardrail.yaml on first run)
//	guardrail serve
//
//	# Score one answer locally
//	echo '{"question":"...","answer":"...","context":[{"text":"..."}]}' | guardrail validate
//
//	# Query a running service
//	guardrail stats --history
//
// # Environment Variables
//
//   - GUARDRAIL_CONFIG: config file path (default: ~/.aleutian/guardrail.yaml)
//   - GUARDRAIL_SERVER: base URL used by stats and validate --remote
//   - GUARDRAIL_ADMIN_TOKEN: bearer token for the admin endpoints
//   - GUARDRAIL_OUTPUT: standard, minimal or machine
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
