package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
)

// UnitLabeler maps a unit id to the symbol shown to the user. Plans carry
// ids only; the caller supplies the lookup.
type UnitLabeler func(model.UnitID) string

// Prompter implements interactive change confirmation on a terminal.
type Prompter struct {
	writer  io.Writer
	reader  *bufio.Reader
	labeler UnitLabeler
}

// NewPrompter creates a prompter with the given reader and writer. Nil
// arguments default to stdin and stdout; a nil labeler falls back to raw ids.
func NewPrompter(reader io.Reader, writer io.Writer, labeler UnitLabeler) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	if labeler == nil {
		labeler = fallbackLabel
	}

	return &Prompter{
		reader:  bufio.NewReader(reader),
		writer:  writer,
		labeler: labeler,
	}
}

// ConfirmPlan shows the plan and asks the user to apply or cancel the change.
// Declining returns (false, nil); only I/O and cancellation are errors.
func (p *Prompter) ConfirmPlan(ctx context.Context, plan *compat.Plan) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	content := FormatPlan(plan, p.labeler)
	if _, err := fmt.Fprintln(p.writer, RenderBox("Change Review", content)); err != nil {
		return false, fmt.Errorf("failed to write plan box: %w", err)
	}

	if _, err := fmt.Fprintln(p.writer, "  [Y] Apply the change"); err != nil {
		return false, fmt.Errorf("failed to write apply option: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, "  [N] Cancel"); err != nil {
		return false, fmt.Errorf("failed to write cancel option: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer); err != nil {
		return false, fmt.Errorf("failed to write newline: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice [Y/N]", []string{"y", "yes", "n", "no"})
	if err != nil {
		return false, err
	}

	return choice == "y" || choice == "yes", nil
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(strings.TrimSpace(input))

		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// FormatPlan renders a plan for review: the proposed change, its verdict,
// the per-group impacts nearest-first, and any warnings.
func FormatPlan(plan *compat.Plan, labeler UnitLabeler) string {
	if labeler == nil {
		labeler = fallbackLabel
	}

	var b strings.Builder
	b.WriteString(BoldStyle.Render("Change:") + " " + plan.Change.Describe() + "\n")
	b.WriteString(BoldStyle.Render("Verdict:") + " " + StyleVerdict(plan.Verdict))

	if len(plan.Impacts) > 0 {
		b.WriteString("\n")
		for _, im := range plan.Impacts {
			b.WriteString(fmt.Sprintf("\n  %s %s %s", caseIcon(im.Case), BoldStyle.Render(im.GroupName), formatImpact(im, labeler)))
		}
	}

	if len(plan.Warnings) > 0 {
		b.WriteString("\n")
		for _, warning := range plan.Warnings {
			b.WriteString("\n  " + WarningStyle.Render(WarningIcon+" "+warning))
		}
	}

	return b.String()
}

func formatImpact(im compat.Impact, labeler UnitLabeler) string {
	var detail string
	switch im.Case {
	case model.ChangeNone:
		detail = fmt.Sprintf("keeps its %d compatible units", im.Remaining.Len())
	case model.ChangeLostCompatible, model.ChangeLostDefault:
		detail = fmt.Sprintf("loses %s (%d remain)", FormatUnitSet(im.Lost, labeler), im.Remaining.Len())
	case model.ChangeNoCompatible:
		detail = fmt.Sprintf("is left with no compatible units (loses %s)", FormatUnitSet(im.Lost, labeler))
	default:
		detail = string(im.Case)
	}

	if im.DefaultLost {
		detail += "; default unit " + labeler(im.DefaultUnitID) + " will be cleared"
	}
	return detail
}

// FormatUnitSet renders a unit set as labels in ascending id order.
func FormatUnitSet(set model.UnitSet, labeler UnitLabeler) string {
	if set.Empty() {
		return "none"
	}
	if labeler == nil {
		labeler = fallbackLabel
	}

	labels := make([]string, 0, set.Len())
	for _, id := range set.IDs() {
		labels = append(labels, labeler(id))
	}
	return strings.Join(labels, ", ")
}

// StyleVerdict colors a verdict for terminal display.
func StyleVerdict(v compat.Verdict) string {
	switch v {
	case compat.VerdictSafe:
		return SuccessStyle.Render(string(v))
	case compat.VerdictNeedsConfirm:
		return WarningStyle.Render(string(v))
	case compat.VerdictBlocked:
		return ErrorStyle.Render(string(v))
	default:
		return string(v)
	}
}

func caseIcon(c model.ChangeCase) string {
	switch c {
	case model.ChangeNone:
		return SuccessStyle.Render(SuccessIcon)
	case model.ChangeLostCompatible, model.ChangeLostDefault:
		return WarningStyle.Render(WarningIcon)
	case model.ChangeNoCompatible:
		return ErrorStyle.Render(ErrorIcon)
	default:
		return " "
	}
}

func fallbackLabel(id model.UnitID) string {
	return fmt.Sprintf("#%d", id)
}
