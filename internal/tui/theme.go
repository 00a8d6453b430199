package tui

import (
	"github.com/charmbracelet/lipgloss"

	"rollbook/internal/model"
)

// Theme is the color palette for the roster screen. Colors are ANSI 256
// codes tuned for a dark terminal background.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	Present  lipgloss.Color
	Absent   lipgloss.Color
	Unmarked lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color
	NoticeText       lipgloss.Color
}

// StatusColor returns the color for an attendance status.
func (theme Theme) StatusColor(status model.Status) lipgloss.Color {
	switch status {
	case model.Present:
		return theme.Present
	case model.Absent:
		return theme.Absent
	default:
		return theme.Unmarked
	}
}

var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	Present:  lipgloss.Color("114"), // green
	Absent:   lipgloss.Color("196"), // red
	Unmarked: lipgloss.Color("245"), // gray

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	ErrorText:        lipgloss.Color("203"),
	NoticeText:       lipgloss.Color("220"),
}
