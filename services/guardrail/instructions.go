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

// GroundingInstructions is the prompt block to place ahead of generation
// prompts so the model answers from the supplied passages only. The
// validation heuristics reward exactly the behavior it asks for.
const GroundingInstructions = `CRITICAL INSTRUCTIONS TO PREVENT HALLUCINATIONS:
- ONLY use information explicitly stated in the provided context
- If information is not in the context, say "I don't have that information in the provided documents"
- Use phrases like "According to the document" or "Based on the provided context"
- Avoid making claims about things not mentioned in the context
- If uncertain, use phrases like "The document suggests" or "It appears that"
- Never make up statistics, dates, or specific details not in the context
- If asked about something not in the documents, politely explain you don't have that information
- Always ground your responses in the provided source material
- Use caution when making generalizations or broad statements
`
