package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TrendCloud/internal/model"
)

// SQLiteRecorder persists snapshots and rolling runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rolling_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol           TEXT NOT NULL,
			timeframe        TEXT NOT NULL,
			generated_at     INTEGER NOT NULL,
			start_date       INTEGER,
			end_date         INTEGER,
			step_days        INTEGER,
			lookback_days    INTEGER,
			total_steps      INTEGER,
			computed         INTEGER,
			skipped          INTEGER,
			support_zones    INTEGER,
			resistance_zones INTEGER,
			avg_strength     REAL,
			empty_snapshots  INTEGER,
			parameters       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON rolling_runs(symbol, generated_at)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id                  INTEGER,
			symbol                  TEXT NOT NULL,
			timeframe               TEXT NOT NULL,
			calculation_date        INTEGER NOT NULL,
			target_date             INTEGER NOT NULL,
			lookback_days           INTEGER,
			current_price           REAL,
			pivot_count             INTEGER,
			trendline_count         INTEGER,
			total_weight            REAL,
			zone_count              INTEGER,
			support_zones           INTEGER,
			resistance_zones        INTEGER,
			avg_strength            REAL,
			avg_trendlines_per_zone REAL,
			dominant_price          REAL,
			dominant_weight         REAL,
			zones                   TEXT,
			recorded_at             INTEGER NOT NULL,
			UNIQUE(symbol, timeframe, calculation_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_date ON snapshots(symbol, timeframe, calculation_date)`,

		`CREATE TABLE IF NOT EXISTS cloud_points (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id       INTEGER NOT NULL,
			price_level       REAL,
			weight            REAL,
			normalized_weight REAL,
			density           REAL,
			trendline_count   INTEGER,
			confidence        REAL,
			kind              TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_snapshot ON cloud_points(snapshot_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSnapshot(snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := insertSnapshot(tx, snap, nil); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordRun(res *model.RollingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	params, err := json.Marshal(res.Metadata.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	md, sum := res.Metadata, res.Summary
	out, err := tx.Exec(`INSERT INTO rolling_runs
		(symbol, timeframe, generated_at, start_date, end_date, step_days, lookback_days,
		 total_steps, computed, skipped, support_zones, resistance_zones, avg_strength,
		 empty_snapshots, parameters)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		md.Symbol, md.Timeframe, md.GeneratedAt.Unix(), md.Start.Unix(), md.End.Unix(),
		md.StepDays, md.LookbackDays, md.TotalSteps, md.Computed, md.Skipped,
		sum.SupportZones, sum.ResistanceZones, sum.AvgStrength, sum.EmptySnapshots, string(params),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("run id: %w", err)
	}
	for i := range res.Snapshots {
		if err := insertSnapshot(tx, &res.Snapshots[i], runID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// insertSnapshot replaces any stored snapshot with the same key. runID may be nil.
func insertSnapshot(tx *sql.Tx, snap *model.Snapshot, runID any) error {
	zones, err := json.Marshal(snap.Zones)
	if err != nil {
		return fmt.Errorf("marshal zones: %w", err)
	}
	key := []any{snap.Symbol, snap.Timeframe, snap.CalculationDate.Unix()}
	if _, err := tx.Exec(`DELETE FROM cloud_points WHERE snapshot_id IN
		(SELECT id FROM snapshots WHERE symbol = ? AND timeframe = ? AND calculation_date = ?)`, key...); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM snapshots WHERE symbol = ? AND timeframe = ? AND calculation_date = ?`, key...); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	s := snap.Summary
	out, err := tx.Exec(`INSERT INTO snapshots
		(run_id, symbol, timeframe, calculation_date, target_date, lookback_days, current_price,
		 pivot_count, trendline_count, total_weight, zone_count, support_zones, resistance_zones,
		 avg_strength, avg_trendlines_per_zone, dominant_price, dominant_weight, zones, recorded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		runID, snap.Symbol, snap.Timeframe, snap.CalculationDate.Unix(), snap.TargetDate.Unix(),
		snap.LookbackDays, snap.CurrentPrice, snap.PivotCount, snap.TrendlineCount, snap.TotalWeight,
		s.ZoneCount, s.SupportZones, s.ResistanceZones, s.AvgStrength, s.AvgTrendlinesPerZone,
		s.DominantPrice, s.DominantWeight, string(zones), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}
	for _, p := range snap.Points {
		if _, err := tx.Exec(`INSERT INTO cloud_points
			(snapshot_id, price_level, weight, normalized_weight, density, trendline_count, confidence, kind)
			VALUES (?,?,?,?,?,?,?,?)`,
			id, p.PriceLevel, p.Weight, p.NormalizedWeight, p.Density, p.TrendlineCount, p.Confidence, string(p.Kind),
		); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}
	return nil
}

const snapshotColumns = `id, symbol, timeframe, calculation_date, target_date, lookback_days, current_price,
	pivot_count, trendline_count, total_weight, zone_count, support_zones, resistance_zones,
	avg_strength, avg_trendlines_per_zone, dominant_price, dominant_weight, zones`

func (r *SQLiteRecorder) LoadSnapshots(symbol, timeframe string, from, to time.Time) ([]model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.querySnapshots(`SELECT `+snapshotColumns+` FROM snapshots
		WHERE symbol = ? AND timeframe = ? AND calculation_date BETWEEN ? AND ?
		ORDER BY calculation_date`, symbol, timeframe, from.Unix(), to.Unix())
}

func (r *SQLiteRecorder) LatestSnapshot(symbol, timeframe string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snaps, err := r.querySnapshots(`SELECT `+snapshotColumns+` FROM snapshots
		WHERE symbol = ? AND timeframe = ?
		ORDER BY calculation_date DESC LIMIT 1`, symbol, timeframe)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

func (r *SQLiteRecorder) querySnapshots(query string, args ...any) ([]model.Snapshot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	var (
		snaps []model.Snapshot
		ids   []int64
	)
	for rows.Next() {
		var (
			s         model.Snapshot
			id        int64
			calc, tgt int64
			zones     string
		)
		if err := rows.Scan(&id, &s.Symbol, &s.Timeframe, &calc, &tgt, &s.LookbackDays, &s.CurrentPrice,
			&s.PivotCount, &s.TrendlineCount, &s.TotalWeight, &s.Summary.ZoneCount,
			&s.Summary.SupportZones, &s.Summary.ResistanceZones, &s.Summary.AvgStrength,
			&s.Summary.AvgTrendlinesPerZone, &s.Summary.DominantPrice, &s.Summary.DominantWeight, &zones,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.CalculationDate = time.Unix(calc, 0).UTC()
		s.TargetDate = time.Unix(tgt, 0).UTC()
		if err := json.Unmarshal([]byte(zones), &s.Zones); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode zones: %w", err)
		}
		snaps = append(snaps, s)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i, id := range ids {
		points, err := r.loadPoints(id)
		if err != nil {
			return nil, err
		}
		snaps[i].Points = points
	}
	return snaps, nil
}

func (r *SQLiteRecorder) loadPoints(snapshotID int64) ([]model.TrendCloudPoint, error) {
	rows, err := r.db.Query(`SELECT price_level, weight, normalized_weight, density, trendline_count, confidence, kind
		FROM cloud_points WHERE snapshot_id = ? ORDER BY id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var points []model.TrendCloudPoint
	for rows.Next() {
		var p model.TrendCloudPoint
		var kind string
		if err := rows.Scan(&p.PriceLevel, &p.Weight, &p.NormalizedWeight, &p.Density, &p.TrendlineCount, &p.Confidence, &kind); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Kind = model.TrendlineKind(kind)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
