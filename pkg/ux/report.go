// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGuard/services/guardrail"
	"github.com/AleutianAI/AleutianGuard/services/guardrail/store"
	"github.com/charmbracelet/lipgloss"
)

// levelStyle returns the icon and style for a quality level.
func levelStyle(level guardrail.QualityLevel) (Icon, lipgloss.Style) {
	switch level {
	case guardrail.QualityHigh:
		return IconSuccess, Styles.Success
	case guardrail.QualityMedium:
		return IconNotice, Styles.Notice
	case guardrail.QualityLow:
		return IconWarning, Styles.Warning
	default:
		return IconError, Styles.Error
	}
}

// LevelLabel renders a quality level with its icon, e.g. "✓ HIGH".
func LevelLabel(level guardrail.QualityLevel) string {
	icon, style := levelStyle(level)
	label := strings.ToUpper(strings.ReplaceAll(level.String(), "_", " "))
	if GetPersonality().Level != PersonalityStandard {
		return fmt.Sprintf("%s %s", icon, label)
	}
	return icon.Render() + " " + style.Bold(true).Render(label)
}

// RenderResult formats a validation result for the terminal.
//
// The enhanced answer is shown in a box colored by quality level, followed
// by the scores, warnings and suggestions.
func RenderResult(res guardrail.ValidationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", LevelLabel(res.QualityLevel), passLabel(res.Passed))
	fmt.Fprintf(&b, "%s %.2f  %s %.2f  %s %.2f\n",
		Styles.Muted.Render("confidence"), res.ConfidenceScore,
		Styles.Muted.Render("risk"), res.RiskScore,
		Styles.Muted.Render("grounding"), res.GroundingRatio,
	)

	if len(res.Warnings) > 0 {
		b.WriteString("\n" + Styles.Bold.Render("Warnings") + "\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  %s %s\n", IconWarning.Render(), w)
		}
	}
	if len(res.Suggestions) > 0 {
		b.WriteString("\n" + Styles.Bold.Render("Suggestions") + "\n")
		for _, s := range res.Suggestions {
			fmt.Fprintf(&b, "  %s %s\n", IconArrow, s)
		}
	}

	b.WriteString("\n")
	b.WriteString(answerBox(res))
	b.WriteString("\n" + Styles.Muted.Render(fmt.Sprintf("config v%d", res.ConfigVersion)) + "\n")
	return b.String()
}

func passLabel(passed bool) string {
	if passed {
		return Styles.Success.Render("passed")
	}
	return Styles.Error.Render("blocked")
}

func answerBox(res guardrail.ValidationResult) string {
	if GetPersonality().Level != PersonalityStandard {
		return res.EnhancedAnswer + "\n"
	}
	style := Styles.Box
	switch res.QualityLevel {
	case guardrail.QualityLow:
		style = Styles.WarningBox
	case guardrail.QualityHallucinationRisk:
		style = Styles.ErrorBox
	}
	return style.Width(72).Render(res.EnhancedAnswer) + "\n"
}

// RenderStats formats aggregate statistics with per-level percentages.
func RenderStats(s guardrail.StatsSnapshot) string {
	var b strings.Builder
	b.WriteString(Styles.Title.Render("Guardrail statistics") + "\n")
	fmt.Fprintf(&b, "%s %d\n", Styles.Muted.Render("total queries"), s.TotalQueries)
	if s.TotalQueries == 0 {
		b.WriteString(Styles.Muted.Render("no validations recorded") + "\n")
		return b.String()
	}

	for _, level := range guardrail.QualityLevels {
		n := s.Count(level)
		label := lipgloss.NewStyle().Width(22).Render(LevelLabel(level))
		fmt.Fprintf(&b, "%s %6d  %s\n", label, n, ProgressBar(n, s.TotalQueries, 20))
	}
	fmt.Fprintf(&b, "%s %.2f  %s %.2f\n",
		Styles.Muted.Render("mean confidence"), s.MeanConfidence,
		Styles.Muted.Render("mean warnings"), s.MeanWarnings,
	)
	return b.String()
}

// RenderSummary formats the result-log summary: the confidence
// distribution followed by the per-level counts.
func RenderSummary(s store.Summary) string {
	var b strings.Builder
	b.WriteString(Styles.Title.Render("Result history") + "\n")
	fmt.Fprintf(&b, "%s %d\n", Styles.Muted.Render("records"), s.Count)
	if s.Count == 0 {
		b.WriteString(Styles.Muted.Render("no results logged") + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s mean %.2f  median %.2f  p90 %.2f  stddev %.2f\n",
		Styles.Muted.Render("confidence"),
		s.MeanConfidence, s.MedianConfidence, s.P90Confidence, s.StdDevConfidence,
	)
	for _, level := range guardrail.QualityLevels {
		n := uint64(s.Levels[level])
		label := lipgloss.NewStyle().Width(22).Render(LevelLabel(level))
		fmt.Fprintf(&b, "%s %6d  %s\n", label, n, ProgressBar(n, uint64(s.Count), 20))
	}
	fmt.Fprintf(&b, "%s %.2f\n", Styles.Muted.Render("mean warnings"), s.MeanWarnings)
	return b.String()
}
