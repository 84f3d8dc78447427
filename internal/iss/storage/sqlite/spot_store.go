package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/spotcall/internal/iss/l2codes"
	"github.com/banshee-data/spotcall/internal/timeutil"
)

// Run is a persisted calling run.
type Run struct {
	RunID           string          `json:"run_id"`
	CreatedAt       int64           `json:"created_at"`
	GeneNames       []string        `json:"gene_names"`
	NChannels       int             `json:"n_channels"`
	ParamsJSON      json.RawMessage `json:"params_json,omitempty"`
	IntensityThresh float64         `json:"intensity_thresh"`
	DuplicateRule   string          `json:"duplicate_rule"`
	NSpots          int             `json:"n_spots"`
}

// Columns returns the coefficient layout of the run.
func (r *Run) Columns() l2codes.Columns {
	return l2codes.Columns{NGenes: len(r.GeneNames), NChannels: r.NChannels}
}

// Spot is one persisted spot with its coefficient row.
type Spot struct {
	Tile       int
	Y, X, Z    float64
	Gene       int
	Score      float64
	Intensity  float64
	NGenes     int
	StopStage  int
	StopReason string
	Skipped    bool
	Failed     bool
	Coefs      l2codes.SparseRow
}

// SpotStore persists calling runs.
type SpotStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewSpotStore creates a SpotStore on a migrated database.
func NewSpotStore(db *sql.DB) *SpotStore {
	return &SpotStore{db: db, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used for run timestamps and busy backoff.
func (s *SpotStore) WithClock(c timeutil.Clock) *SpotStore {
	s.clock = c
	return s
}

// SaveRun stores run and the spots whose keep entry is set, numbered from 0
// in input order. A nil keep stores every spot. If RunID is empty a UUID is
// generated; the stored run is returned with RunID, CreatedAt and NSpots
// filled in.
func (s *SpotStore) SaveRun(ctx context.Context, run Run, spots []Spot, keep []bool) (*Run, error) {
	if keep != nil && len(keep) != len(spots) {
		return nil, fmt.Errorf("keep mask has %d entries for %d spots", len(keep), len(spots))
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	width := run.Columns().Width()
	run.NSpots = 0
	for i := range spots {
		if keep == nil || keep[i] {
			run.NSpots++
		}
		if n := spots[i].Coefs.NNZ(); n > 0 && spots[i].Coefs.Indices[n-1] >= width {
			return nil, fmt.Errorf("spot %d has coefficient column %d outside width %d", i, spots[i].Coefs.Indices[n-1], width)
		}
	}
	names, err := json.Marshal(run.GeneNames)
	if err != nil {
		return nil, fmt.Errorf("encode gene names: %w", err)
	}
	params := "{}"
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	err = retryOnBusy(s.clock, func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO omp_runs (
					run_id, created_unix_nanos, n_genes, n_channels, gene_names_json,
					params_json, intensity_thresh, duplicate_rule, n_spots
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, run.CreatedAt, len(run.GeneNames), run.NChannels, string(names),
				params, run.IntensityThresh, run.DuplicateRule, run.NSpots,
			); err != nil {
				return fmt.Errorf("insert run: %w", err)
			}

			info, err := tx.PrepareContext(ctx, `
				INSERT INTO omp_spot_info (
					run_id, spot_no, tile, y, x, z, gene, score, intensity,
					n_genes, stop_stage, stop_reason, skipped, failed
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("prepare spot info: %w", err)
			}
			defer info.Close()
			coef, err := tx.PrepareContext(ctx, `
				INSERT INTO omp_spot_coefs (run_id, spot_no, col, value) VALUES (?, ?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("prepare spot coefs: %w", err)
			}
			defer coef.Close()

			no := 0
			for i := range spots {
				if keep != nil && !keep[i] {
					continue
				}
				sp := &spots[i]
				if _, err := info.ExecContext(ctx,
					run.RunID, no, sp.Tile, sp.Y, sp.X, sp.Z, sp.Gene, sp.Score, sp.Intensity,
					sp.NGenes, sp.StopStage, sp.StopReason, sp.Skipped, sp.Failed,
				); err != nil {
					return fmt.Errorf("insert spot %d: %w", i, err)
				}
				for j, col := range sp.Coefs.Indices {
					if _, err := coef.ExecContext(ctx, run.RunID, no, col, sp.Coefs.Values[j]); err != nil {
						return fmt.Errorf("insert coefficients of spot %d: %w", i, err)
					}
				}
				no++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// PruneDuplicates removes, from both the spot info and coefficient tables,
// every stored spot of runID whose keep entry is false, and renumbers the
// survivors from 0 preserving their order. keep must have one entry per
// stored spot. It returns the number of spots removed.
func (s *SpotStore) PruneDuplicates(ctx context.Context, runID string, keep []bool) (int, error) {
	removed := 0
	err := retryOnBusy(s.clock, func() error {
		removed = 0
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var n int
			err := tx.QueryRowContext(ctx, `SELECT n_spots FROM omp_runs WHERE run_id = ?`, runID).Scan(&n)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("run %s not found", runID)
			}
			if err != nil {
				return fmt.Errorf("query run: %w", err)
			}
			if len(keep) != n {
				return fmt.Errorf("keep mask has %d entries for %d stored spots", len(keep), n)
			}

			next := 0
			for no, k := range keep {
				if !k {
					if _, err := tx.ExecContext(ctx, `DELETE FROM omp_spot_coefs WHERE run_id = ? AND spot_no = ?`, runID, no); err != nil {
						return fmt.Errorf("delete coefficients of spot %d: %w", no, err)
					}
					if _, err := tx.ExecContext(ctx, `DELETE FROM omp_spot_info WHERE run_id = ? AND spot_no = ?`, runID, no); err != nil {
						return fmt.Errorf("delete spot %d: %w", no, err)
					}
					removed++
					continue
				}
				// Ascending order keeps the target number free.
				if next != no {
					if _, err := tx.ExecContext(ctx, `UPDATE omp_spot_info SET spot_no = ? WHERE run_id = ? AND spot_no = ?`, next, runID, no); err != nil {
						return fmt.Errorf("renumber spot %d: %w", no, err)
					}
					if _, err := tx.ExecContext(ctx, `UPDATE omp_spot_coefs SET spot_no = ? WHERE run_id = ? AND spot_no = ?`, next, runID, no); err != nil {
						return fmt.Errorf("renumber coefficients of spot %d: %w", no, err)
					}
				}
				next++
			}
			if _, err := tx.ExecContext(ctx, `UPDATE omp_runs SET n_spots = ? WHERE run_id = ?`, next, runID); err != nil {
				return fmt.Errorf("update run: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// GetRun returns a run by ID.
func (s *SpotStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_unix_nanos, n_channels, gene_names_json,
		       params_json, intensity_thresh, duplicate_rule, n_spots
		FROM omp_runs
		WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return r, err
}

// ListRuns returns runs ordered by creation time, newest first. limit <= 0
// returns every run.
func (s *SpotStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_unix_nanos, n_channels, gene_names_json,
		       params_json, intensity_thresh, duplicate_rule, n_spots
		FROM omp_runs
		ORDER BY created_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var names, params string
	if err := row.Scan(&r.RunID, &r.CreatedAt, &r.NChannels, &names,
		&params, &r.IntensityThresh, &r.DuplicateRule, &r.NSpots); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(names), &r.GeneNames); err != nil {
		return nil, fmt.Errorf("decode gene names of run %s: %w", r.RunID, err)
	}
	r.ParamsJSON = json.RawMessage(params)
	return &r, nil
}

// LoadSpots returns the stored spots of runID ordered by spot number, each
// with its coefficient row.
func (s *SpotStore) LoadSpots(ctx context.Context, runID string) ([]Spot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spot_no, tile, y, x, z, gene, score, intensity, n_genes,
		       stop_stage, stop_reason, skipped, failed
		FROM omp_spot_info
		WHERE run_id = ?
		ORDER BY spot_no`, runID)
	if err != nil {
		return nil, fmt.Errorf("query spots: %w", err)
	}
	var spots []Spot
	for rows.Next() {
		var sp Spot
		var no int
		if err := rows.Scan(&no, &sp.Tile, &sp.Y, &sp.X, &sp.Z, &sp.Gene, &sp.Score, &sp.Intensity,
			&sp.NGenes, &sp.StopStage, &sp.StopReason, &sp.Skipped, &sp.Failed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		if no != len(spots) {
			rows.Close()
			return nil, fmt.Errorf("run %s: spot numbers are not contiguous at %d", runID, no)
		}
		spots = append(spots, sp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("query spots: %w", err)
	}
	rows.Close()

	coefRows, err := s.db.QueryContext(ctx, `
		SELECT spot_no, col, value
		FROM omp_spot_coefs
		WHERE run_id = ?
		ORDER BY spot_no, col`, runID)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	defer coefRows.Close()
	for coefRows.Next() {
		var no, col int
		var v float64
		if err := coefRows.Scan(&no, &col, &v); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		if no < 0 || no >= len(spots) {
			return nil, fmt.Errorf("run %s: coefficient for unknown spot %d", runID, no)
		}
		c := &spots[no].Coefs
		c.Indices = append(c.Indices, col)
		c.Values = append(c.Values, v)
	}
	return spots, coefRows.Err()
}

// GeneCounts returns the number of stored spots assigned to each gene of
// runID. Spots without a gene are counted under -1.
func (s *SpotStore) GeneCounts(ctx context.Context, runID string) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gene, COUNT(*) FROM omp_spot_info WHERE run_id = ? GROUP BY gene`, runID)
	if err != nil {
		return nil, fmt.Errorf("query gene counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[int]int)
	for rows.Next() {
		var gene, n int
		if err := rows.Scan(&gene, &n); err != nil {
			return nil, fmt.Errorf("scan gene count: %w", err)
		}
		counts[gene] = n
	}
	return counts, rows.Err()
}

// DeleteRun removes a run with all of its spots and coefficients.
func (s *SpotStore) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(s.clock, func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			for _, q := range []string{
				`DELETE FROM omp_spot_coefs WHERE run_id = ?`,
				`DELETE FROM omp_spot_info WHERE run_id = ?`,
			} {
				if _, err := tx.ExecContext(ctx, q, runID); err != nil {
					return fmt.Errorf("delete run %s: %w", runID, err)
				}
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM omp_runs WHERE run_id = ?`, runID)
			if err != nil {
				return fmt.Errorf("delete run %s: %w", runID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("run %s not found", runID)
			}
			return nil
		})
	})
}

func (s *SpotStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
