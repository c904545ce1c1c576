package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matheus3301/chatd/internal/store/migrations"
)

const pgUniqueViolation = "23505"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
	url  string
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres creates a PostgreSQL store with a connection pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, url: databaseURL}, nil
}

// Migrate runs all pending migrations against the database.
func (s *PostgresStore) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(s.url))
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	return runUp(m)
}

// migrateURL rewrites a postgres:// URL to the scheme the pgx/v5 migrate
// driver registers.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Engine names the backing engine.
func (s *PostgresStore) Engine() string { return EnginePostgres }

// InsertMessage stores a new message.
func (s *PostgresStore) InsertMessage(ctx context.Context, m *Message) error {
	prepareMessage(m)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.Seen, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage returns a single message by id.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// FindByParticipants returns the conversation between a and b in insertion order.
func (s *PostgresStore) FindByParticipants(ctx context.Context, a, b string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY seq ASC`, a, b)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MarkManySeen marks every unseen message from sender to receiver as seen.
func (s *PostgresStore) MarkManySeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen`, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkOneSeen marks a single message as seen.
func (s *PostgresStore) MarkOneSeen(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE messages SET seen = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark message seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnseen counts unseen messages from sender to receiver.
func (s *PostgresStore) CountUnseen(ctx context.Context, senderID, receiverID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen`, senderID, receiverID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return n, nil
}

// UnseenBySender groups the receiver's unseen messages by sender.
func (s *PostgresStore) UnseenBySender(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = $1 AND NOT seen
		GROUP BY sender_id`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("unseen by sender: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unseen: %w", err)
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

// CreateUser inserts a new account.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	prepareUser(u)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, bio, profile_pic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.Bio, u.ProfilePic, toMillis(u.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail returns a user by normalised email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
}

func (s *PostgresStore) getUser(ctx context.Context, query, arg string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists reports whether id names an account.
func (s *PostgresStore) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// ListUsersExcept returns every account other than id, ordered by name.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateProfile applies the non-empty fields of p and returns the result.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET
			full_name = COALESCE(NULLIF($1, ''), full_name),
			bio = COALESCE(NULLIF($2, ''), bio),
			profile_pic = COALESCE(NULLIF($3, ''), profile_pic)
		WHERE id = $4
		RETURNING `+userColumns, p.FullName, p.Bio, p.ProfilePic, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}
