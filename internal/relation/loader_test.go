package relation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() *Document {
	return &Document{
		Version:     "2024-06-01",
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Sources:     []AxisUnit{{UnitID: 10, Index: 0}, {UnitID: 11, Index: 1}},
		Targets:     []AxisUnit{{UnitID: 20, Index: 0}, {UnitID: 21, Index: 1}, {UnitID: 22, Index: 2}},
		Rows: [][]bool{
			{true, false, true},
			{false, true, false},
		},
	}
}

func TestLoadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NoError(t, json.NewEncoder(w).Encode(testDocument()))
	}))
	defer server.Close()

	var lastDone, lastTotal int
	loader := NewLoader(WithProgress(func(done, total int) {
		lastDone, lastTotal = done, total
	}))

	m, err := loader.LoadURL(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", m.Version())
	assert.Equal(t, 2, m.SourceCount())
	assert.Equal(t, 3, m.TargetCount())
	assert.Equal(t, 2, lastDone)
	assert.Equal(t, 2, lastTotal)

	row, ok := m.RowOf(10)
	require.True(t, ok)
	col, ok := m.ColOf(22)
	require.True(t, ok)
	assert.True(t, m.Compatible(row, col))
}

func TestLoadURLStatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
		wantErr       error
	}{
		{
			name:          "throttled backs off and retries",
			status:        http.StatusTooManyRequests,
			wantRetryable: true,
			wantErr:       common.ErrRateLimit,
		},
		{
			name:          "server error retries",
			status:        http.StatusInternalServerError,
			wantRetryable: true,
			wantErr:       common.ErrRelationFetch,
		},
		{
			name:          "client error is permanent",
			status:        http.StatusNotFound,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewLoader().LoadURL(context.Background(), server.URL)
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, common.IsRetryable(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadURLMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewLoader().LoadURL(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRelationMalformed)
	assert.False(t, common.IsRetryable(err), "a bad document never gets better by retrying")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relation.json")
	data, err := json.Marshal(testDocument())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	m, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.SourceCount())
	assert.Equal(t, 3, m.TargetCount())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestBuildMatrixValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{
			name:   "row count mismatch",
			mutate: func(d *Document) { d.Rows = d.Rows[:1] },
		},
		{
			name:   "row width mismatch",
			mutate: func(d *Document) { d.Rows[0] = []bool{true} },
		},
		{
			name:   "duplicate source index",
			mutate: func(d *Document) { d.Sources[1].Index = 0 },
		},
		{
			name:   "duplicate target id",
			mutate: func(d *Document) { d.Targets[1].UnitID = 20 },
		},
		{
			name:   "sentinel unit id",
			mutate: func(d *Document) { d.Sources[0].UnitID = model.NoUnit },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument()
			tt.mutate(doc)

			_, err := BuildMatrix(doc, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrRelationMalformed)
		})
	}
}

func TestBuildMatrixNilDocument(t *testing.T) {
	_, err := BuildMatrix(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRelationMalformed)
}
