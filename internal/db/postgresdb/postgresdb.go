// Package postgresdb provides a PostgreSQL-based implementation of the storage
// interface. The uniqueness invariants (user email, short code) are enforced by
// unique constraints created by the goose migrations; constraint violations are
// translated into storage.ErrUniqueViolation.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed implementation of the storage interface.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before migration.
// It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("error while resetting the database schema: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return storage.ErrUniqueViolation
	}

	return err
}

// CreateUser inserts a new user row. A duplicate email is reported as
// storage.ErrUniqueViolation.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *models.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, activated, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
		usr.ID,
		usr.Email,
		usr.PasswordHash,
		usr.Activated,
		usr.CreatedAt,
	)

	return translateUniqueViolation(err)
}

// FindUserByEmail looks a user up by email, case-insensitively.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, activated, created_at
			FROM users
			WHERE lower(email) = lower($1)`,
		email,
	)

	return scanUser(row)
}

// FindUserByID looks a user up by its ID.
func (db *PostgresDB) FindUserByID(ctx context.Context, userID string) (*models.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, activated, created_at
			FROM users
			WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, bool, error) {
	var usr models.User
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Activated, &usr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// ActivateUser sets activated=true. Repeating the update is harmless.
func (db *PostgresDB) ActivateUser(ctx context.Context, userID string) error {
	return db.updateUserColumn(
		ctx,
		`UPDATE users SET activated = true WHERE id = $1`,
		userID,
	)
}

// UpdateUserPassword replaces the stored password hash.
func (db *PostgresDB) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	return db.updateUserColumn(
		ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		userID,
		passwordHash,
	)
}

func (db *PostgresDB) updateUserColumn(ctx context.Context, query string, args ...any) error {
	result, err := db.database.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SaveResetToken upserts the token row keyed by user ID, so a concurrent
// re-issue resolves to last writer wins.
func (db *PostgresDB) SaveResetToken(ctx context.Context, token *models.ResetToken) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO reset_tokens (user_id, token, created_at, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET
				token = EXCLUDED.token,
				created_at = EXCLUDED.created_at,
				expires_at = EXCLUDED.expires_at`,
		token.UserID,
		token.Token,
		token.CreatedAt,
		token.ExpiresAt,
	)

	return err
}

// FindResetToken returns the live token row for the user, if any.
func (db *PostgresDB) FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT user_id, token, created_at, expires_at
			FROM reset_tokens
			WHERE user_id = $1`,
		userID,
	)

	var token models.ResetToken
	err := row.Scan(&token.UserID, &token.Token, &token.CreatedAt, &token.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &token, true, nil
}

// DeleteResetToken removes the token row for the user. Idempotent.
func (db *PostgresDB) DeleteResetToken(ctx context.Context, userID string) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM reset_tokens WHERE user_id = $1`,
		userID,
	)

	return err
}

// InsertShortURL inserts a new mapping row. A duplicate short code is reported
// as storage.ErrUniqueViolation so the caller can retry generation.
func (db *PostgresDB) InsertShortURL(ctx context.Context, record *models.ShortURL) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO short_urls (id, full_url, short_code, created_at, click_count)
			VALUES ($1, $2, $3, $4, $5)`,
		record.ID,
		record.FullURL,
		record.ShortCode,
		record.CreatedAt,
		record.ClickCount,
	)

	return translateUniqueViolation(err)
}

// FindShortURLByCode returns the mapping for the code, if any.
func (db *PostgresDB) FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, full_url, short_code, created_at, click_count
			FROM short_urls
			WHERE short_code = $1`,
		code,
	)

	var record models.ShortURL
	err := row.Scan(&record.ID, &record.FullURL, &record.ShortCode, &record.CreatedAt, &record.ClickCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &record, true, nil
}

// IsCodeExists checks if the specified short code exists in the database.
func (db *PostgresDB) IsCodeExists(ctx context.Context, code string) (bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM short_urls WHERE short_code = $1`,
		code,
	)
	var codeCount int
	err := row.Scan(&codeCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, err
	}

	return codeCount > 0, nil
}

// IncrementClickCount atomically bumps the click counter of the mapping.
func (db *PostgresDB) IncrementClickCount(ctx context.Context, code string) error {
	result, err := db.database.ExecContext(
		ctx,
		`UPDATE short_urls SET click_count = click_count + 1 WHERE short_code = $1`,
		code,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetAllShortURLs returns every mapping ordered by creation time.
func (db *PostgresDB) GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, full_url, short_code, created_at, click_count
			FROM short_urls
			ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ShortURL
	for rows.Next() {
		var record models.ShortURL
		err = rows.Scan(&record.ID, &record.FullURL, &record.ShortCode, &record.CreatedAt, &record.ClickCount)
		if err != nil {
			return nil, err
		}

		result = append(result, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("error while dropping the public schema tables: %w", err)
	}
	return nil
}
