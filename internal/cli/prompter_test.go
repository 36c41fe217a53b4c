package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/model"
)

// testLabeler resolves the unit ids used by the fixtures below.
func testLabeler(id model.UnitID) string {
	switch id {
	case 3:
		return "mV"
	case 4:
		return "V"
	case 5:
		return "kV"
	default:
		return fmt.Sprintf("#%d", id)
	}
}

// samplePlan is a confirmable plan: the target loses a unit and the parent
// group loses its default on top of that.
func samplePlan() *compat.Plan {
	return &compat.Plan{
		Change:  compat.AddMeterChange(2, 7),
		Verdict: compat.VerdictNeedsConfirm,
		Impacts: []compat.Impact{
			{
				GroupID:   2,
				GroupName: "Feeders",
				Case:      model.ChangeLostCompatible,
				Lost:      model.NewUnitSet(5),
				Remaining: model.NewUnitSet(3, 4),
			},
			{
				GroupID:       1,
				GroupName:     "Plant",
				Case:          model.ChangeLostDefault,
				Lost:          model.NewUnitSet(5),
				Remaining:     model.NewUnitSet(3, 4),
				DefaultUnitID: 5,
				DefaultLost:   true,
			},
		},
	}
}

func TestPrompterConfirmPlan(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantOutput    []string
		want          bool
		wantErr       bool
		cancelContext bool
	}{
		{
			name:  "apply with y",
			input: "y\n",
			want:  true,
		},
		{
			name:  "apply with yes",
			input: "yes\n",
			want:  true,
		},
		{
			name:  "cancel with n",
			input: "n\n",
			want:  false,
		},
		{
			name:  "cancel is case insensitive",
			input: "NO\n",
			want:  false,
		},
		{
			name:       "invalid choice then apply",
			input:      "x\ny\n",
			want:       true,
			wantOutput: []string{"Invalid choice. Please try again."},
		},
		{
			name:          "context canceled",
			cancelContext: true,
			wantErr:       true,
		},
		{
			name:    "input terminated",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := strings.NewReader(tt.input)
			var output bytes.Buffer
			prompter := NewPrompter(reader, &output, testLabeler)

			ctx := context.Background()
			if tt.cancelContext {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			ok, err := prompter.ConfirmPlan(ctx, samplePlan())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			outputStr := output.String()
			assert.Contains(t, outputStr, "Change Review")
			assert.Contains(t, outputStr, "add meter 7 to group 2")
			assert.Contains(t, outputStr, "[Y] Apply the change")
			assert.Contains(t, outputStr, "[N] Cancel")
			for _, want := range tt.wantOutput {
				assert.Contains(t, outputStr, want)
			}
		})
	}
}

func TestPrompterConfirmPlanEOFReportsTermination(t *testing.T) {
	prompter := NewPrompter(strings.NewReader(""), &bytes.Buffer{}, nil)

	_, err := prompter.ConfirmPlan(context.Background(), samplePlan())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "input terminated")
}

func TestFormatPlan(t *testing.T) {
	tests := []struct {
		plan *compat.Plan
		name string
		want []string
	}{
		{
			name: "losses and lost default",
			plan: samplePlan(),
			want: []string{
				"add meter 7 to group 2",
				string(compat.VerdictNeedsConfirm),
				"Feeders",
				"loses kV (2 remain)",
				"Plant",
				"default unit kV will be cleared",
			},
		},
		{
			name: "safe change",
			plan: &compat.Plan{
				Change:  compat.RemoveMeterChange(2, 7),
				Verdict: compat.VerdictSafe,
				Impacts: []compat.Impact{
					{
						GroupID:   2,
						GroupName: "Feeders",
						Case:      model.ChangeNone,
						Lost:      model.NewUnitSet(),
						Remaining: model.NewUnitSet(3, 4, 5),
					},
				},
			},
			want: []string{
				"remove meter 7 from group 2",
				string(compat.VerdictSafe),
				"keeps its 3 compatible units",
			},
		},
		{
			name: "blocked change",
			plan: &compat.Plan{
				Change:  compat.AddGroupChange(1, 6),
				Verdict: compat.VerdictBlocked,
				Impacts: []compat.Impact{
					{
						GroupID:   1,
						GroupName: "Plant",
						Case:      model.ChangeNoCompatible,
						Lost:      model.NewUnitSet(3, 4),
						Remaining: model.NewUnitSet(),
					},
				},
			},
			want: []string{
				"add group 6 to group 1",
				string(compat.VerdictBlocked),
				"is left with no compatible units (loses mV, V)",
			},
		},
		{
			name: "warnings are rendered",
			plan: &compat.Plan{
				Change:   compat.SetDefaultChange(2, 5),
				Verdict:  compat.VerdictSafe,
				Warnings: []string{"no compatibility relation installed; default compatibility not verified"},
				Impacts: []compat.Impact{
					{
						GroupID:   2,
						GroupName: "Feeders",
						Case:      model.ChangeNone,
						Lost:      model.NewUnitSet(),
						Remaining: model.NewUnitSet(),
					},
				},
			},
			want: []string{
				"set default unit of group 2 to 5",
				"no compatibility relation installed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatPlan(tt.plan, testLabeler)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatPlanNilLabelerFallsBackToIDs(t *testing.T) {
	out := FormatPlan(samplePlan(), nil)

	assert.Contains(t, out, "loses #5 (2 remain)")
	assert.Contains(t, out, "default unit #5 will be cleared")
}

func TestFormatUnitSet(t *testing.T) {
	tests := []struct {
		labeler UnitLabeler
		name    string
		want    string
		set     model.UnitSet
	}{
		{
			name:    "empty set",
			set:     model.NewUnitSet(),
			labeler: testLabeler,
			want:    "none",
		},
		{
			name:    "labels in ascending id order",
			set:     model.NewUnitSet(5, 3, 4),
			labeler: testLabeler,
			want:    "mV, V, kV",
		},
		{
			name: "nil labeler falls back to ids",
			set:  model.NewUnitSet(9),
			want: "#9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUnitSet(tt.set, tt.labeler))
		})
	}
}

func TestStyleChangeCase(t *testing.T) {
	for _, c := range []model.ChangeCase{
		model.ChangeNone,
		model.ChangeLostCompatible,
		model.ChangeLostDefault,
		model.ChangeNoCompatible,
	} {
		assert.Contains(t, StyleChangeCase(c), string(c))
	}
}

func TestStyleVerdict(t *testing.T) {
	for _, v := range []compat.Verdict{
		compat.VerdictSafe,
		compat.VerdictNeedsConfirm,
		compat.VerdictBlocked,
	} {
		assert.Contains(t, StyleVerdict(v), string(v))
	}
}
