package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"paysuit/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	// Create tables
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_secret VARCHAR(255);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_enabled BOOLEAN DEFAULT FALSE;`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS phone VARCHAR(32);`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func rolesToStrings(roles []models.UserRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func rolesFromStrings(raw []string) []models.UserRole {
	out := make([]models.UserRole, len(raw))
	for i, r := range raw {
		out[i] = models.UserRole(r)
	}
	return out
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, name, email, phone, password string, roles []models.UserRole) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleTenant}
	}

	var user models.User
	var rawRoles []string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, roles, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, name, email, phone, password_hash, roles, created_at`,
		name, email, phone, passwordHash, pq.Array(rolesToStrings(roles)),
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.PasswordHash, pq.Array(&rawRoles), &user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}

	user.Roles = rolesFromStrings(rawRoles)
	return user, nil
}

func (s *PostgresStore) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	var phone, totpSecret sql.NullString
	var rawRoles []string

	err := row.Scan(&user.ID, &user.Name, &user.Email, &phone, &user.PasswordHash,
		pq.Array(&rawRoles), &totpSecret, &user.TOTPEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	user.Phone = phone.String
	user.TOTPSecret = totpSecret.String
	user.Roles = rolesFromStrings(rawRoles)
	return user, nil
}

const userColumns = `id, name, email, phone, password_hash, roles, totp_secret, totp_enabled, created_at`

func (s *PostgresStore) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var phone, totpSecret sql.NullString
		var rawRoles []string

		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &phone, &user.PasswordHash,
			pq.Array(&rawRoles), &totpSecret, &user.TOTPEnabled, &user.CreatedAt); err != nil {
			continue
		}

		user.Phone = phone.String
		user.TOTPSecret = totpSecret.String
		user.Roles = rolesFromStrings(rawRoles)
		users = append(users, user)
	}

	return users, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id int, name, phone string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, phone = $2 WHERE id = $3`,
		name, phone, id,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int, newPasswordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`,
		newPasswordHash, id,
	)
	return err
}

func (s *PostgresStore) UpdateUserRoles(ctx context.Context, id int, roles []models.UserRole) error {
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleTenant}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET roles = $1 WHERE id = $2`,
		pq.Array(rolesToStrings(roles)), id,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// 2FA methods

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		totpSecret, enabled, userID,
	)
	return err
}

func (s *PostgresStore) Disable2FA(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled = FALSE WHERE id = $1`,
		userID,
	)
	return err
}

// Push subscription methods
//
// Endpoint is the unique key: a browser re-subscribing with rotated keys
// overwrites its existing row in place.

func (s *PostgresStore) UpsertSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) (int, error) {
	owner := sql.NullInt64{Int64: int64(userID), Valid: userID != 0}

	var id int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (endpoint) DO UPDATE
		 SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		 RETURNING id`,
		owner, endpoint, p256dh, auth,
	).Scan(&id)

	return id, err
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	return err
}

// DeleteSubscriptionOwned removes the endpoint only if the caller owns it.
// Deleting nothing is not an error.
func (s *PostgresStore) DeleteSubscriptionOwned(ctx context.Context, userID int, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1 AND user_id = $2`,
		endpoint, userID)
	return err
}

const subscriptionColumns = `id, user_id, endpoint, p256dh, auth, created_at`

func (s *PostgresStore) scanSubscriptions(rows *sql.Rows) []models.PushSubscription {
	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		var owner sql.NullInt64
		if err := rows.Scan(&sub.ID, &owner, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			continue
		}
		sub.UserID = int(owner.Int64)
		subs = append(subs, sub)
	}
	return subs
}

func (s *PostgresStore) GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanSubscriptions(rows), nil
}

func (s *PostgresStore) GetSubscriptionsByUser(ctx context.Context, userID int) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanSubscriptions(rows), nil
}

// Audit methods

func (s *PostgresStore) AddAuditLog(ctx context.Context, entry models.AuditLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		entry.ActorID, entry.Action, entry.TargetType, entry.TargetID, entry.Metadata,
	)
	return err
}

func (s *PostgresStore) GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, metadata, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var targetID sql.NullInt64
		var metadata sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetType, &targetID, &metadata, &entry.CreatedAt); err != nil {
			continue
		}
		entry.TargetID = int(targetID.Int64)
		entry.Metadata = metadata.String
		logs = append(logs, entry)
	}

	return logs, nil
}
