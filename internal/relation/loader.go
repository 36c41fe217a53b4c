package relation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/meterflow/meterflow/internal/common"
	"github.com/meterflow/meterflow/internal/model"
)

// Document is the wire form of a precomputed relation: both unit axes with
// their indexes, plus one dense boolean row per source unit.
type Document struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Version     string     `json:"version"`
	Sources     []AxisUnit `json:"sources"`
	Targets     []AxisUnit `json:"targets"`
	Rows        [][]bool   `json:"rows"`
}

// AxisUnit binds one unit id to its row or column index.
type AxisUnit struct {
	UnitID model.UnitID `json:"unit_id"`
	Index  int          `json:"index"`
}

// ProgressFunc is called as rows of the document are folded into the matrix.
type ProgressFunc func(done, total int)

// Loader fetches relation documents and turns them into matrices.
type Loader struct {
	httpClient *http.Client
	onProgress ProgressFunc
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithProgress registers a per-row progress callback.
func WithProgress(fn ProgressFunc) LoaderOption {
	return func(l *Loader) {
		l.onProgress = fn
	}
}

// NewLoader creates a relation loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadURL fetches a relation document over HTTP and builds the matrix.
// Transient failures (network, throttling, 5xx) come back retryable so
// callers can wrap the fetch in common.WithRetry; client errors and
// malformed documents do not.
func (l *Loader) LoadURL(ctx context.Context, endpoint string) (*Matrix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("Requesting relation document", "url", endpoint)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRelationFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("relation endpoint throttled: %w", common.ErrRateLimit)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: %d - %s", common.ErrRelationFetch, resp.StatusCode, string(body))
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("relation endpoint rejected request: %d - %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%w: failed to decode document: %v", common.ErrRelationMalformed, err),
			Retryable: false,
		}
	}

	m, err := BuildMatrix(&doc, l.onProgress)
	if err != nil {
		return nil, &common.RetryableError{Err: err, Retryable: false}
	}
	return m, nil
}

// LoadFile reads a relation document from disk and builds the matrix.
func (l *Loader) LoadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open relation file: %w", err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode document: %v", common.ErrRelationMalformed, err)
	}

	return BuildMatrix(&doc, l.onProgress)
}

// BuildMatrix validates a document and folds it into an immutable Matrix.
// Every row must match the target axis width, and both axes must be free of
// duplicate ids and duplicate indexes.
func BuildMatrix(doc *Document, onProgress ProgressFunc) (*Matrix, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", common.ErrRelationMalformed)
	}
	if len(doc.Rows) != len(doc.Sources) {
		return nil, fmt.Errorf("%w: %d rows for %d source units", common.ErrRelationMalformed, len(doc.Rows), len(doc.Sources))
	}

	b := NewBuilder().SetMeta(doc.Version, doc.GeneratedAt)
	for _, src := range doc.Sources {
		if err := b.AddSource(src.UnitID, src.Index); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRelationMalformed, err)
		}
	}
	for _, tgt := range doc.Targets {
		if err := b.AddTarget(tgt.UnitID, tgt.Index); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrRelationMalformed, err)
		}
	}

	total := len(doc.Rows)
	for row, cols := range doc.Rows {
		if len(cols) != len(doc.Targets) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", common.ErrRelationMalformed, row, len(cols), len(doc.Targets))
		}
		for col, ok := range cols {
			if ok {
				b.Set(row, col)
			}
		}
		if onProgress != nil {
			onProgress(row+1, total)
		}
	}

	m, err := b.Build()
	if err != nil {
		return nil, err
	}

	slog.Debug("Built relation matrix",
		"version", m.Version(),
		"sources", m.SourceCount(),
		"targets", m.TargetCount())

	return m, nil
}
