package main

import (
	"context"
	"testing"

	"github.com/meterflow/meterflow/internal/compat"
	"github.com/meterflow/meterflow/internal/engine"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/meterflow/meterflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnitID(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    model.UnitID
		wantErr bool
	}{
		{name: "valid id", arg: "42", want: 42},
		{name: "not a number", arg: "kV", wantErr: true},
		{name: "zero is the sentinel", arg: "0", wantErr: true},
		{name: "negative", arg: "-3", wantErr: true},
		{name: "empty", arg: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUnitID(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid unit id")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMeterID(t *testing.T) {
	got, err := parseMeterID("7")
	require.NoError(t, err)
	assert.Equal(t, model.MeterID(7), got)

	_, err = parseMeterID("seven")
	require.Error(t, err)

	_, err = parseMeterID("0")
	require.Error(t, err)
}

func TestParseGroupID(t *testing.T) {
	got, err := parseGroupID("3")
	require.NoError(t, err)
	assert.Equal(t, model.GroupID(3), got)

	// The root sentinel is not addressable from the command line.
	_, err = parseGroupID("0")
	require.Error(t, err)
}

func TestUnitLabelerUsesCatalogSymbols(t *testing.T) {
	f := testutil.SetupElectricalDB(t)
	ctx := context.Background()

	labeler, err := unitLabeler(ctx, f.Storage)
	require.NoError(t, err)

	assert.Equal(t, "kV", labeler(f.Units["kV"]))
	assert.Equal(t, "u-A", labeler(f.Units["u-A"]))
	assert.Equal(t, "#9999", labeler(model.UnitID(9999)))
}

func TestInitRelationMissingCacheStaysNotReady(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	provider, err := initRelation(ctx, db.Storage)
	require.NoError(t, err)
	assert.False(t, provider.Ready())
	assert.Nil(t, provider.Snapshot())
}

func TestInitRelationReinstallsCachedSnapshot(t *testing.T) {
	f := testutil.SetupElectricalDB(t)
	ctx := context.Background()

	provider, err := initRelation(ctx, f.Storage)
	require.NoError(t, err)
	require.True(t, provider.Ready())

	matrix := provider.Matrix()
	assert.Equal(t, 3, matrix.SourceCount())
	assert.Equal(t, 5, matrix.TargetCount())

	row, ok := matrix.RowOf(f.Units["u-V"])
	require.True(t, ok)
	col, ok := matrix.ColOf(f.Units["kV"])
	require.True(t, ok)
	assert.True(t, matrix.Compatible(row, col))
}

func TestReportResultExitContract(t *testing.T) {
	plan := &compat.Plan{
		Change:  compat.AddMeterChange(2, 7),
		Verdict: compat.VerdictSafe,
	}

	tests := []struct {
		name    string
		outcome engine.Outcome
		wantErr bool
	}{
		{name: "applied exits zero", outcome: engine.OutcomeApplied},
		{name: "declined exits zero", outcome: engine.OutcomeDeclined},
		{name: "blocked exits non-zero", outcome: engine.OutcomeBlocked, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reportResult(&engine.Result{Plan: plan, Outcome: tt.outcome}, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "change blocked")
				return
			}
			assert.NoError(t, err)
		})
	}
}
