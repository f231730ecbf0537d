package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"centavo-service/internal/entities"
	internalErrors "centavo-service/internal/errors"

	"github.com/google/uuid"
)

// Store persists sessions, accounts, the credit ledger, webhook audit
// entries and manual references behind one database/sql handle. The two
// operations that need true atomicity, amount reservation and the claim,
// lean on a partial unique index over pending amounts and a single
// UPDATE..RETURNING respectively; no in-process locking exists.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects, pings and migrates. Production runs the postgres driver;
// tests run the same SQL against sqlite3, so migrations and queries stay in
// the dialect intersection.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s store: %w", driver, err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS payment_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tier TEXT NOT NULL,
			exact_amount_due BIGINT NOT NULL,
			credits_to_grant BIGINT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			paid_at TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_pending_amount
			ON payment_sessions (exact_amount_due) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS ix_sessions_user
			ON payment_sessions (user_id, created_at);

		CREATE TABLE IF NOT EXISTS accounts (
			user_id TEXT PRIMARY KEY,
			credits BIGINT NOT NULL DEFAULT 0,
			active_tier TEXT NOT NULL DEFAULT '',
			tier_locked_until TIMESTAMP,
			daily_usage BIGINT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS credit_ledger (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			display_amount TEXT NOT NULL,
			credits_delta BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ix_ledger_user
			ON credit_ledger (user_id, created_at);

		CREATE TABLE IF NOT EXISTS webhook_audit (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS manual_references (
			reference TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// TryReserveAmount inserts a pending session holding the exact amount. The
// partial unique index on pending amounts arbitrates races: a concurrent
// insert of the same amount leaves exactly one winner, the loser sees zero
// rows affected and reports false so the caller can probe the next offset.
func (s *Store) TryReserveAmount(ctx context.Context, session *entities.PaymentSession) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_sessions
			(id, user_id, tier, exact_amount_due, credits_to_grant, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		ON CONFLICT (exact_amount_due) WHERE status = 'pending' DO NOTHING`,
		session.ID, session.UserID, string(session.Tier), session.ExactAmountDue,
		session.CreditsToGrant, session.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("reserving amount %d: %w", session.ExactAmountDue, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClaimByAmount atomically flips the one pending-and-unexpired session with
// the notified amount to paid and returns it. Redelivery of the same
// notification finds nothing pending and gets ErrNoMatchingSession.
func (s *Store) ClaimByAmount(ctx context.Context, amount int64, createdAfter time.Time) (*entities.PaymentSession, error) {
	paidAt := s.now()
	row := s.db.QueryRowContext(ctx, `
		UPDATE payment_sessions
		SET status = 'paid', paid_at = $1
		WHERE status = 'pending' AND exact_amount_due = $2 AND created_at > $3
		RETURNING id, user_id, tier, exact_amount_due, credits_to_grant, status, created_at, paid_at`,
		paidAt, amount, createdAfter,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalErrors.ErrNoMatchingSession
	}
	if err != nil {
		return nil, fmt.Errorf("claiming amount %d: %w", amount, err)
	}
	return session, nil
}

// ExpireStale sweeps pending sessions whose TTL elapsed before the cutoff.
func (s *Store) ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = 'expired'
		WHERE status = 'pending' AND created_at <= $1`,
		createdBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring stale sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) GetSession(ctx context.Context, id string) (*entities.PaymentSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, tier, exact_amount_due, credits_to_grant, status, created_at, paid_at
		FROM payment_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalErrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", id, err)
	}
	return session, nil
}

// LatestPending returns the newest pending session for one user, for
// client-side recovery after a reload.
func (s *Store) LatestPending(ctx context.Context, userID string) (*entities.PaymentSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, tier, exact_amount_due, credits_to_grant, status, created_at, paid_at
		FROM payment_sessions
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`, userID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalErrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching latest pending session for %s: %w", userID, err)
	}
	return session, nil
}

// ApplyFulfillment credits the account and appends the ledger entry in one
// transaction. The balance change is a single atomic arithmetic update, so
// concurrent fulfillments for the same account cannot lose increments.
func (s *Store) ApplyFulfillment(ctx context.Context, session *entities.PaymentSession, lockUntil *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting fulfillment tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, session.UserID); err != nil {
		return fmt.Errorf("ensuring account %s: %w", session.UserID, err)
	}

	if lockUntil != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts
			SET credits = credits + $1, active_tier = $2, tier_locked_until = $3, daily_usage = 0
			WHERE user_id = $4`,
			session.CreditsToGrant, string(session.Tier), *lockUntil, session.UserID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts SET credits = credits + $1 WHERE user_id = $2`,
			session.CreditsToGrant, session.UserID)
	}
	if err != nil {
		return fmt.Errorf("crediting account %s: %w", session.UserID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger (id, user_id, entry_type, display_amount, credits_delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), session.UserID, "purchase:"+string(session.Tier),
		entities.DisplayAmount(session.ExactAmountDue), session.CreditsToGrant, s.now(),
	); err != nil {
		return fmt.Errorf("appending ledger entry for %s: %w", session.UserID, err)
	}

	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*entities.Account, error) {
	var (
		account entities.Account
		tier    string
		locked  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, credits, active_tier, tier_locked_until, daily_usage
		FROM accounts WHERE user_id = $1`, userID,
	).Scan(&account.UserID, &account.Credits, &tier, &locked, &account.DailyUsage)
	if errors.Is(err, sql.ErrNoRows) {
		// A user with no purchases yet has an implicit empty account.
		return &entities.Account{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", userID, err)
	}
	account.ActiveTier = entities.Tier(tier)
	if locked.Valid {
		t := locked.Time
		account.TierLockedUntil = &t
	}
	return &account, nil
}

// InsertManualReference records a user-submitted bank transfer reference.
// A reused reference is a duplicate submission, not a storage failure.
func (s *Store) InsertManualReference(ctx context.Context, userID, reference string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO manual_references (reference, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (reference) DO NOTHING`,
		reference, userID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("recording manual reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return internalErrors.ErrDuplicateReference
	}
	return nil
}

func (s *Store) InsertAudit(ctx context.Context, eventType, outcome string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_audit (id, event_type, outcome, received_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), eventType, outcome, s.now(),
	)
	if err != nil {
		return fmt.Errorf("recording webhook audit entry: %w", err)
	}
	return nil
}

// AuditLog returns recent webhook audit entries, newest first.
func (s *Store) AuditLog(ctx context.Context, limit int) ([]entities.WebhookAuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, outcome, received_at
		FROM webhook_audit ORDER BY received_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing webhook audit entries: %w", err)
	}
	defer rows.Close()

	var entries []entities.WebhookAuditEntry
	for rows.Next() {
		var e entities.WebhookAuditEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.Outcome, &e.ReceivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerEntries returns a user's balance history, newest first.
func (s *Store) LedgerEntries(ctx context.Context, userID string, limit int) ([]entities.CreditLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, entry_type, display_amount, credits_delta, created_at
		FROM credit_ledger WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries for %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []entities.CreditLedgerEntry
	for rows.Next() {
		var e entities.CreditLedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EntryType, &e.DisplayAmount, &e.CreditsDelta, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*entities.PaymentSession, error) {
	var (
		session entities.PaymentSession
		tier    string
		status  string
		paidAt  sql.NullTime
	)
	err := row.Scan(&session.ID, &session.UserID, &tier, &session.ExactAmountDue,
		&session.CreditsToGrant, &status, &session.CreatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	session.Tier = entities.Tier(tier)
	session.Status = entities.SessionStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		session.PaidAt = &t
	}
	return &session, nil
}
