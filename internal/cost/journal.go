package cost

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// JournalEntry 为日志中的一条结算记录。
type JournalEntry struct {
	Sample         CostSample
	GrossProfitUSD *float64
}

// Journal 以追加方式记录结算成本，重启后可回放重建窗口。
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJournal 创建结算日志并初始化表结构。
func NewJournal(db *sql.DB, logger *zap.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("cost: 数据库实例不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &Journal{db: db, logger: logger}
	if err := j.initSchema(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS cost_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			notional_usd REAL,
			fee_pct REAL,
			spread_pct REAL,
			slippage_pct REAL,
			gross_profit_usd REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cost_samples_recorded ON cost_samples(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_cost_samples_symbol ON cost_samples(symbol);`,
	}

	for _, stmt := range schema {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("cost: 初始化表结构失败: %w", err)
		}
	}
	return nil
}

// Append 写入一条结算记录。
func (j *Journal) Append(ctx context.Context, entry JournalEntry) error {
	s := entry.Sample
	var gross interface{}
	if entry.GrossProfitUSD != nil {
		gross = nullableFloat(*entry.GrossProfitUSD)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO cost_samples (recorded_at, symbol, side, notional_usd, fee_pct, spread_pct, slippage_pct, gross_profit_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp.UTC().UnixNano(), s.Symbol, s.Side,
		nullableFloat(s.NotionalUSD), nullableFloat(s.FeePct), nullableFloat(s.SpreadPct), nullableFloat(s.SlippagePct),
		gross,
	)
	if err != nil {
		return fmt.Errorf("cost: 写入结算记录失败: %w", err)
	}
	return nil
}

// Replay 按时间顺序读取 since 之后的记录并逐条回调。
func (j *Journal) Replay(ctx context.Context, since time.Time, fn func(JournalEntry) error) (int, error) {
	entries, err := j.load(ctx, since)
	if err != nil {
		return 0, err
	}

	for i, entry := range entries {
		if err := fn(entry); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// 先读完再回调，避免单连接内存库在游标未关闭时被重入。
func (j *Journal) load(ctx context.Context, since time.Time) ([]JournalEntry, error) {
	var sinceNano int64
	if !since.IsZero() {
		sinceNano = since.UTC().UnixNano()
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT recorded_at, symbol, side, notional_usd, fee_pct, spread_pct, slippage_pct, gross_profit_usd
		 FROM cost_samples WHERE recorded_at >= ? ORDER BY recorded_at ASC, id ASC`,
		sinceNano,
	)
	if err != nil {
		return nil, fmt.Errorf("cost: 查询结算记录失败: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			recordedAt                      int64
			symbol, side                    string
			notional, fee, spread, slippage sql.NullFloat64
			gross                           sql.NullFloat64
		)
		if err := rows.Scan(&recordedAt, &symbol, &side, &notional, &fee, &spread, &slippage, &gross); err != nil {
			return nil, fmt.Errorf("cost: 解析结算记录失败: %w", err)
		}

		entry := JournalEntry{
			Sample: NewCostSample(time.Unix(0, recordedAt).UTC(), symbol, side,
				floatOrNaN(notional), floatOrNaN(fee), floatOrNaN(spread), floatOrNaN(slippage)),
		}
		if gross.Valid {
			v := gross.Float64
			entry.GrossProfitUSD = &v
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cost: 读取结算记录失败: %w", err)
	}

	return entries, nil
}

// Rebuild 将日志回放进估计器，返回回放条数。
func Rebuild(ctx context.Context, journal *Journal, estimator *Estimator, since time.Time) (int, error) {
	count, err := journal.Replay(ctx, since, func(entry JournalEntry) error {
		estimator.Record(entry.Sample)
		return nil
	})
	if err != nil {
		return count, err
	}

	journal.logger.Info("成本窗口已从日志重建", zap.Int("samples", count), zap.Time("since", since))
	return count, nil
}

// SQLite 会把 NaN 存成 NULL，这里显式处理以便回放时还原。
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
