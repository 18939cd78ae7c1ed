package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/manifoldco/promptui"
	"github.com/quantmind-br/gman/internal/core"
)

// Asker asks the user questions on the terminal
type Asker struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

// NewAsker creates an Asker. Nil streams fall back to the process terminal.
func NewAsker(stdin io.ReadCloser, stdout io.WriteCloser) *Asker {
	return &Asker{stdin: stdin, stdout: stdout}
}

// Confirm asks a y/N question
func (a *Asker) Confirm(question string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     question,
		IsConfirm: true,
		Stdin:     a.stdin,
		Stdout:    a.stdout,
	}

	_, err := prompt.Run()
	return confirmAnswer(err)
}

// ChooseConflict asks what to do with an existing installation.
// Add is only offered when allowAdd is set.
func (a *Asker) ChooseConflict(product string, allowAdd bool) (core.ConflictMode, error) {
	options := conflictOptions(allowAdd)

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "▸ {{ .Label | cyan }} ({{ .Detail | faint }})",
		Inactive: "  {{ .Label | faint }} ({{ .Detail | faint }})",
		Selected: "▸ {{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     fmt.Sprintf("%s is already installed", product),
		Items:     options,
		Templates: templates,
		Stdin:     a.stdin,
		Stdout:    a.stdout,
		Searcher: func(input string, index int) bool {
			if input == "" {
				return true
			}
			return fuzzy.MatchNormalizedFold(strings.TrimSpace(input), options[index].Label)
		},
	}

	index, _, err := prompt.Run()
	return selectedMode(options, index, err)
}

// SelectOption is one entry of a detailed select prompt
type SelectOption struct {
	Label  string
	Detail string
}

func conflictOptions(allowAdd bool) []SelectOption {
	options := []SelectOption{
		{Label: "Overwrite", Detail: "remove the installed copy first"},
	}
	if allowAdd {
		options = append(options, SelectOption{Label: "Add", Detail: "install alongside under a new name"})
	}
	return append(options, SelectOption{Label: "Cancel", Detail: "leave everything as it is"})
}

// confirmAnswer maps a confirm prompt's error to an answer.
// promptui reports "no" as ErrAbort and a closed input as ErrEOF.
func confirmAnswer(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrEOF):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt):
		return false, core.ErrCanceled
	default:
		return false, err
	}
}

// selectedMode maps a select prompt's result to a conflict mode.
// Leaving the prompt cancels.
func selectedMode(options []SelectOption, index int, err error) (core.ConflictMode, error) {
	switch {
	case err == nil:
		if index < 0 || index >= len(options) {
			return core.ConflictCancel, fmt.Errorf("selection %d out of range", index)
		}
		return core.ParseConflictMode(options[index].Label), nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF), errors.Is(err, promptui.ErrAbort):
		return core.ConflictCancel, nil
	default:
		return core.ConflictCancel, err
	}
}
