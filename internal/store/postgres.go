package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"syncademic/internal/domain"
)

// Postgres implements ProfileStore, AuthStore and UsageStore on a pgx
// connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

const schema = `
create table if not exists sync_profiles (
	id                 text primary key,
	user_id            text not null,
	title              text not null default '',
	source_url         text not null,
	target_calendar_id text not null,
	ruleset_json       text not null default '',
	status             text not null default 'notStarted',
	error_message      text not null default '',
	last_sync_at       timestamptz,
	sync_started_at    timestamptz,
	created_at         timestamptz not null default now()
);

create table if not exists backend_authorizations (
	user_id                text primary key,
	provider               text not null default 'google',
	provider_account_id    text not null,
	provider_account_email text not null,
	access_token           text not null,
	refresh_token          text not null default '',
	expiration_date        timestamptz,
	unique (provider, provider_account_id)
);

create table if not exists sync_usage (
	user_id text not null,
	day     date not null,
	syncs   int  not null default 0,
	primary key (user_id, day)
);
`

func (s *Postgres) GetProfile(ctx context.Context, id string) (domain.SyncProfile, error) {
	row := s.pool.QueryRow(ctx, `
		select id, user_id, title, source_url, target_calendar_id, ruleset_json,
		       status, error_message, last_sync_at, sync_started_at, created_at
		from sync_profiles where id = $1`, id)

	var p domain.SyncProfile
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.SourceURL, &p.TargetCalendarID,
		&p.RulesetJSON, &status, &p.ErrorMessage, &p.LastSyncAt, &p.SyncStartedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SyncProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.SyncProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.Status = domain.SyncProfileStatus(status)
	return p, nil
}

func (s *Postgres) PutProfile(ctx context.Context, p domain.SyncProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileValidation, err)
	}
	_, err := s.pool.Exec(ctx, `
		insert into sync_profiles
			(id, user_id, title, source_url, target_calendar_id, ruleset_json,
			 status, error_message, last_sync_at, sync_started_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		on conflict (id) do update set
			title = excluded.title,
			source_url = excluded.source_url,
			target_calendar_id = excluded.target_calendar_id,
			ruleset_json = excluded.ruleset_json,
			status = excluded.status,
			error_message = excluded.error_message,
			last_sync_at = excluded.last_sync_at,
			sync_started_at = excluded.sync_started_at`,
		p.ID, p.UserID, p.Title, p.SourceURL, p.TargetCalendarID, p.RulesetJSON,
		string(p.Status), p.ErrorMessage, p.LastSyncAt, p.SyncStartedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *Postgres) ListProfiles(ctx context.Context) ([]domain.SyncProfile, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, title, source_url, target_calendar_id, ruleset_json,
		       status, error_message, last_sync_at, sync_started_at, created_at
		from sync_profiles order by created_at`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.SyncProfile
	for rows.Next() {
		var p domain.SyncProfile
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.SourceURL, &p.TargetCalendarID,
			&p.RulesetJSON, &status, &p.ErrorMessage, &p.LastSyncAt, &p.SyncStartedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Status = domain.SyncProfileStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		update sync_profiles set
			status = $2,
			error_message = $3,
			last_sync_at = coalesce($4, last_sync_at),
			sync_started_at = coalesce($5, sync_started_at)
		where id = $1`,
		id, string(upd.Status), upd.ErrorMessage, upd.LastSyncAt, upd.SyncStartedAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *Postgres) GetAuthorization(ctx context.Context, userID string) (domain.BackendAuthorization, error) {
	row := s.pool.QueryRow(ctx, `
		select user_id, provider, provider_account_id, provider_account_email,
		       access_token, refresh_token, expiration_date
		from backend_authorizations where user_id = $1`, userID)

	var a domain.BackendAuthorization
	err := row.Scan(&a.UserID, &a.Provider, &a.ProviderAccountID, &a.ProviderAccountEmail,
		&a.AccessToken, &a.RefreshToken, &a.ExpirationDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BackendAuthorization{}, ErrAuthNotFound
	}
	if err != nil {
		return domain.BackendAuthorization{}, fmt.Errorf("get authorization: %w", err)
	}
	return a, nil
}

func (s *Postgres) PutAuthorization(ctx context.Context, a domain.BackendAuthorization) error {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		insert into backend_authorizations
			(user_id, provider, provider_account_id, provider_account_email,
			 access_token, refresh_token, expiration_date)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (user_id) do update set
			provider = excluded.provider,
			provider_account_id = excluded.provider_account_id,
			provider_account_email = excluded.provider_account_email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiration_date = excluded.expiration_date`,
		a.UserID, a.Provider, a.ProviderAccountID, a.ProviderAccountEmail,
		a.AccessToken, a.RefreshToken, a.ExpirationDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("put authorization: %w", err)
	}
	return nil
}

func (s *Postgres) IncrSyncsToday(ctx context.Context, userID string, day time.Time) (int, error) {
	row := s.pool.QueryRow(ctx, `
		insert into sync_usage (user_id, day, syncs) values ($1, $2, 1)
		on conflict (user_id, day) do update set syncs = sync_usage.syncs + 1
		returning syncs`, userID, day.UTC().Format("2006-01-02"))
	var syncs int
	if err := row.Scan(&syncs); err != nil {
		return 0, fmt.Errorf("incr usage: %w", err)
	}
	return syncs, nil
}

func (s *Postgres) SyncsToday(ctx context.Context, userID string, day time.Time) (int, error) {
	row := s.pool.QueryRow(ctx, `
		select coalesce(
			(select syncs from sync_usage where user_id = $1 and day = $2), 0)`,
		userID, day.UTC().Format("2006-01-02"))
	var syncs int
	if err := row.Scan(&syncs); err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	return syncs, nil
}
