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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/orchestrator/datatypes"
)

// errNotPassed is returned by validate --strict when the answer raised
// warnings.
var errNotPassed = errors.New("answer did not pass validation")

type validateOptions struct {
	question     string
	answer       string
	answerFile   string
	contextFiles []string
	remote       bool
	strict       bool
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate [request.json|-]",
		Short: "Score one answer against its source context",
		Long: `Scores one answer and prints the validation result.

The request is read as JSON ({"question","answer","context":[{"source","text"}]})
from the given file, or from stdin when no file and no --answer is given.
Alternatively build it from flags with --answer and repeated --context files.

Validation runs in-process with the local config unless --remote is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.buildRequest(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("invalid request: %w", err)
			}

			var res *guardrail.ValidationResult
			if opts.remote {
				res, err = validateRemote(cmd, root, req)
			} else {
				res, err = validateLocal(cmd, root, req)
			}
			if err != nil {
				return err
			}

			if err := printResult(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if opts.strict && !res.Passed {
				return errNotPassed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.question, "question", "q", "", "the user question")
	f.StringVarP(&opts.answer, "answer", "a", "", "the generated answer")
	f.StringVar(&opts.answerFile, "answer-file", "", "read the answer from a file")
	f.StringArrayVarP(&opts.contextFiles, "context", "c", nil, "source document file, repeatable")
	f.BoolVar(&opts.remote, "remote", false, "validate on the running service instead of in-process")
	f.BoolVar(&opts.strict, "strict", false, "exit non-zero when the answer raises any warning")
	return cmd
}

// buildRequest assembles the request from flags, a JSON file or stdin.
func (o *validateOptions) buildRequest(stdin io.Reader, args []string) (*datatypes.ValidateRequest, error) {
	if o.answer != "" || o.answerFile != "" {
		if len(args) > 0 {
			return nil, errors.New("give either a request file or --answer, not both")
		}
		return o.requestFromFlags()
	}

	var src io.Reader = stdin
	if len(args) == 1 && args[0] != "-" {
		fh, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer fh.Close()
		src = fh
	}

	var req datatypes.ValidateRequest
	if err := json.NewDecoder(src).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if o.question != "" {
		req.Question = o.question
	}
	return &req, nil
}

func (o *validateOptions) requestFromFlags() (*datatypes.ValidateRequest, error) {
	req := &datatypes.ValidateRequest{Question: o.question, Answer: o.answer}
	if o.answerFile != "" {
		data, err := os.ReadFile(o.answerFile)
		if err != nil {
			return nil, fmt.Errorf("read answer: %w", err)
		}
		req.Answer = string(data)
	}
	for _, path := range o.contextFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read context: %w", err)
		}
		req.Context = append(req.Context, datatypes.SnippetBody{
			Source: filepath.Base(path),
			Text:   string(data),
		})
	}
	return req, nil
}

func validateLocal(cmd *cobra.Command, root *rootOptions, req *datatypes.ValidateRequest) (*guardrail.ValidationResult, error) {
	file, _, err := root.loadConfig(false)
	if err != nil {
		return nil, err
	}
	system, err := newEngine(file, slog.Default())
	if err != nil {
		return nil, err
	}
	return system.Validate(cmd.Context(), req.ToEngine())
}

func validateRemote(cmd *cobra.Command, root *rootOptions, req *datatypes.ValidateRequest) (*guardrail.ValidationResult, error) {
	var resp datatypes.ValidateResponse
	client := newAPIClient(root.server, root.token)
	if err := client.do(cmd.Context(), http.MethodPost, "/v1/guardrail/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// printResult writes res as indented JSON in machine mode, styled otherwise.
func printResult(w io.Writer, res *guardrail.ValidationResult) error {
	if ux.IsMachine() {
		return writeJSON(w, res)
	}
	_, err := fmt.Fprint(w, ux.RenderResult(*res))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
