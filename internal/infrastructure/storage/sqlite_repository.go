package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"velestra/internal/domain"
	"velestra/internal/ports"
)

// SQLiteRepository persists signals, the article dedup ledger, and the
// calendar job ledger. Every state transition and sent-flag flip is a single
// guarded UPDATE, so the precondition check and the write are one atomic
// unit even with the scheduler and the admin listener racing.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.SignalRepository = (*SQLiteRepository)(nil)
var _ ports.ArticleRepository = (*SQLiteRepository)(nil)
var _ ports.JobLedger = (*SQLiteRepository)(nil)

// Open prepares a SQLite database handle for shared use by both workers.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLiteRepository wires a sql.DB implementation.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Migrate creates the schema if it does not exist yet.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			signal_type TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			confidence REAL NOT NULL,
			detected_at INTEGER NOT NULL,
			prediction TEXT NOT NULL,
			evidence TEXT NOT NULL,
			approval_status TEXT NOT NULL DEFAULT 'pending',
			tier_assignment TEXT NOT NULL DEFAULT 'none',
			approved_at INTEGER,
			sent_free INTEGER NOT NULL DEFAULT 0,
			sent_premium INTEGER NOT NULL DEFAULT 0,
			sent_free_at INTEGER,
			sent_premium_at INTEGER,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			source TEXT NOT NULL,
			published_at INTEGER NOT NULL,
			processed INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS content_jobs (
			job TEXT NOT NULL,
			period TEXT NOT NULL,
			ran_at INTEGER NOT NULL,
			PRIMARY KEY (job, period)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

const signalColumns = "id, signal_type, source, content, confidence, detected_at, prediction, evidence, approval_status, tier_assignment, approved_at, sent_free, sent_premium, notes"

// CreateSignal inserts a new pending signal. A primary-key collision is
// surfaced as domain.ErrDuplicateID so the creator can re-derive the id.
func (r *SQLiteRepository) CreateSignal(ctx context.Context, signal domain.Signal) error {
	evidence, err := json.Marshal(signal.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	query := sq.Insert("signals").
		Columns("id", "signal_type", "source", "content", "confidence",
			"detected_at", "prediction", "evidence", "approval_status",
			"tier_assignment", "notes").
		Values(signal.ID, string(signal.Type), signal.Source, signal.Content,
			signal.Confidence, signal.DetectedAt.Unix(), signal.Prediction,
			string(evidence), string(signal.ApprovalStatus),
			string(signal.TierAssignment), signal.Notes)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("insert %s: %w", signal.ID, domain.ErrDuplicateID)
		}
		return storeErr("insert signal", err)
	}
	return nil
}

// GetSignal loads one signal by id.
func (r *SQLiteRepository) GetSignal(ctx context.Context, id string) (domain.Signal, error) {
	query := sq.Select(signalColumns).From("signals").Where(sq.Eq{"id": id})
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return domain.Signal{}, fmt.Errorf("build select: %w", err)
	}

	signal, err := scanSignal(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Signal{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Signal{}, storeErr("get signal", err)
	}
	return signal, nil
}

// TransitionApproval applies pending -> status as one guarded UPDATE. Losing
// the race to another transition yields domain.ErrAlreadyProcessed with no
// side effect.
func (r *SQLiteRepository) TransitionApproval(ctx context.Context, id string, status domain.ApprovalStatus, tier *domain.Tier, note string, at time.Time) error {
	update := sq.Update("signals").
		Set("approval_status", string(status)).
		Set("approved_at", at.Unix()).
		Set("notes", note).
		Where(sq.Eq{"id": id, "approval_status": string(domain.StatusPending)})
	if tier != nil {
		update = update.Set("tier_assignment", string(*tier))
	}

	sqlStr, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build transition: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return storeErr("transition signal", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("transition signal", err)
	}
	if affected == 1 {
		return nil
	}

	// Nothing matched: distinguish an unknown id from a terminal signal.
	if _, err := r.GetSignal(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyProcessed
}

// ClaimSent flips the tier's sent flag false -> true, but only while the
// signal is approved or auto-approved. The returned boolean reports whether
// this caller won the flip.
func (r *SQLiteRepository) ClaimSent(ctx context.Context, id string, tier domain.Tier, at time.Time) (bool, error) {
	flag, stamp, err := sentColumns(tier)
	if err != nil {
		return false, err
	}

	query := sq.Update("signals").
		Set(flag, 1).
		Set(stamp, at.Unix()).
		Where(sq.Eq{
			"id":              id,
			flag:              0,
			"approval_status": []string{string(domain.StatusApproved), string(domain.StatusAutoApproved)},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, storeErr("claim sent", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("claim sent", err)
	}
	return affected == 1, nil
}

// ReleaseSent clears the tier's sent flag after a failed transmission.
func (r *SQLiteRepository) ReleaseSent(ctx context.Context, id string, tier domain.Tier) error {
	flag, stamp, err := sentColumns(tier)
	if err != nil {
		return err
	}

	sqlStr, args, err := sq.Update("signals").
		Set(flag, 0).
		Set(stamp, nil).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return storeErr("release sent", err)
	}
	return nil
}

// ListPending returns the newest pending signals for the operator queue.
func (r *SQLiteRepository) ListPending(ctx context.Context, limit int) ([]domain.Signal, error) {
	query := sq.Select(signalColumns).From("signals").
		Where(sq.Eq{"approval_status": string(domain.StatusPending)}).
		OrderBy("detected_at DESC").
		Limit(uint64(limit))
	return r.querySignals(ctx, query)
}

// DelayedReleaseCandidates returns every approved signal still owed a free
// alert. The release gate decides per tick whether each may go out.
func (r *SQLiteRepository) DelayedReleaseCandidates(ctx context.Context) ([]domain.Signal, error) {
	query := sq.Select(signalColumns).From("signals").
		Where(sq.Eq{
			"approval_status": []string{string(domain.StatusApproved), string(domain.StatusAutoApproved)},
			"tier_assignment": []string{string(domain.TierFree), string(domain.TierBoth)},
			"sent_free":       0,
		}).
		OrderBy("detected_at ASC")
	return r.querySignals(ctx, query)
}

// FreeSentCountSince counts free alerts whose dispatch time falls in the
// trailing window.
func (r *SQLiteRepository) FreeSentCountSince(ctx context.Context, since time.Time) (int, error) {
	sqlStr, args, err := sq.Select("COUNT(*)").From("signals").
		Where(sq.Eq{"sent_free": 1}).
		Where(sq.GtOrEq{"sent_free_at": since.Unix()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, storeErr("count free sends", err)
	}
	return count, nil
}

// TopPremiumSince returns the highest-confidence premium-sent signals in the
// window, for the weekly digest.
func (r *SQLiteRepository) TopPremiumSince(ctx context.Context, since time.Time, limit int) ([]domain.Signal, error) {
	query := sq.Select(signalColumns).From("signals").
		Where(sq.Eq{"sent_premium": 1}).
		Where(sq.GtOrEq{"detected_at": since.Unix()}).
		OrderBy("confidence DESC").
		Limit(uint64(limit))
	return r.querySignals(ctx, query)
}

// StatsSince aggregates the operator-facing numbers for the window.
func (r *SQLiteRepository) StatsSince(ctx context.Context, since time.Time) (domain.Stats, error) {
	stats := domain.Stats{ByStatus: map[domain.ApprovalStatus]int{}}

	sqlStr, args, err := sq.Select("approval_status", "COUNT(*)").From("signals").
		Where(sq.GtOrEq{"detected_at": since.Unix()}).
		GroupBy("approval_status").
		ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return domain.Stats{}, storeErr("stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.Stats{}, storeErr("scan stats", err)
		}
		stats.ByStatus[domain.ApprovalStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, storeErr("stats rows", err)
	}

	stats.AutoApproved = stats.ByStatus[domain.StatusAutoApproved]

	if stats.PremiumSent, err = r.sentCountSince(ctx, "sent_premium_at", since); err != nil {
		return domain.Stats{}, err
	}
	if stats.FreeSent, err = r.sentCountSince(ctx, "sent_free_at", since); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

func (r *SQLiteRepository) sentCountSince(ctx context.Context, stamp string, since time.Time) (int, error) {
	sqlStr, args, err := sq.Select("COUNT(*)").From("signals").
		Where(sq.GtOrEq{stamp: since.Unix()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sent count: %w", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, storeErr("count sends", err)
	}
	return count, nil
}

// InsertArticleIfNew appends to the dedup ledger; false means the article
// was seen before and must be dropped.
func (r *SQLiteRepository) InsertArticleIfNew(ctx context.Context, article domain.Article) (bool, error) {
	sqlStr, args, err := sq.Insert("articles").
		Options("OR IGNORE").
		Columns("id", "title", "url", "source", "published_at").
		Values(article.ID, article.Title, article.URL, article.Source, article.PublishedAt.Unix()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build article insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, storeErr("insert article", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("insert article", err)
	}
	return affected == 1, nil
}

// MarkJobRun claims the (job, period) pair; true means first run this period.
func (r *SQLiteRepository) MarkJobRun(ctx context.Context, job, period string) (bool, error) {
	sqlStr, args, err := sq.Insert("content_jobs").
		Options("OR IGNORE").
		Columns("job", "period", "ran_at").
		Values(job, period, time.Now().Unix()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build job insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, storeErr("mark job run", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("mark job run", err)
	}
	return affected == 1, nil
}

func (r *SQLiteRepository) querySignals(ctx context.Context, query sq.SelectBuilder) ([]domain.Signal, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, storeErr("query signals", err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, storeErr("scan signal", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("signal rows", err)
	}
	return signals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (domain.Signal, error) {
	var (
		signal      domain.Signal
		signalType  string
		status      string
		tier        string
		evidence    string
		detectedAt  int64
		approvedAt  sql.NullInt64
		sentFree    int
		sentPremium int
	)

	err := row.Scan(&signal.ID, &signalType, &signal.Source, &signal.Content,
		&signal.Confidence, &detectedAt, &signal.Prediction, &evidence,
		&status, &tier, &approvedAt, &sentFree, &sentPremium, &signal.Notes)
	if err != nil {
		return domain.Signal{}, err
	}

	signal.Type = domain.SignalType(signalType)
	signal.ApprovalStatus = domain.ApprovalStatus(status)
	signal.TierAssignment = domain.Tier(tier)
	signal.DetectedAt = time.Unix(detectedAt, 0).UTC()
	if approvedAt.Valid {
		t := time.Unix(approvedAt.Int64, 0).UTC()
		signal.ApprovedAt = &t
	}
	signal.SentFree = sentFree == 1
	signal.SentPremium = sentPremium == 1

	if err := json.Unmarshal([]byte(evidence), &signal.Evidence); err != nil {
		return domain.Signal{}, fmt.Errorf("decode evidence: %w", err)
	}
	return signal, nil
}

func sentColumns(tier domain.Tier) (flag, stamp string, err error) {
	switch tier {
	case domain.TierFree:
		return "sent_free", "sent_free_at", nil
	case domain.TierPremium:
		return "sent_premium", "sent_premium_at", nil
	default:
		return "", "", fmt.Errorf("tier %q has no sent flag", tier)
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
