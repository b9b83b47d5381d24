// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import "errors"

var (
	// ErrNilRequest indicates Validate was called without a request.
	ErrNilRequest = errors.New("validation request is nil")

	// ErrInvalidConfig indicates a configuration that was rejected. The
	// previous configuration stays in effect.
	ErrInvalidConfig = errors.New("invalid guardrail configuration")

	// ErrInvariant indicates the engine computed a value it cannot trust,
	// such as a non-finite score. Never returned for ordinary input.
	ErrInvariant = errors.New("guardrail invariant violated")
)
