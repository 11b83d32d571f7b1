package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/wordchain/internal/models"
)

// ErrUserNotFound is returned when no row matches the username.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts a user, assigning an ID if none is set.
func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	q := `INSERT INTO users (id, username, is_ephemeral)
	      VALUES ($1, $2, $3)
	      RETURNING created_at`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, user.ID, user.Username, user.IsEphemeral).Scan(&user.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByUsername loads a user and their counters.
func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, username, is_ephemeral, games_played, games_won, created_at
	FROM users
	WHERE username=$1
	`
	err := DB.QueryRow(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.IsEphemeral,
		&u.GamesPlayed, &u.GamesWon, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}
	return &u, nil
}

// GetOrCreateUser loads a user, first inserting a zeroed non-ephemeral row if
// the username has never been stored.
func GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	insert := `INSERT INTO users (id, username, is_ephemeral)
	           VALUES ($1, $2, FALSE)
	           ON CONFLICT (username) DO NOTHING`
	sel := `
	SELECT id, username, is_ephemeral, games_played, games_won, created_at
	FROM users
	WHERE username=$1
	`

	var u models.User
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insert, id, username); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", username, err)
		}
		return tx.QueryRow(ctx, sel, username).Scan(
			&u.ID, &u.Username, &u.IsEphemeral,
			&u.GamesPlayed, &u.GamesWon, &u.CreatedAt,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}
	return &u, nil
}

// SaveUserStats writes the user's games-played and games-won counters.
func SaveUserStats(ctx context.Context, u *models.User) error {
	q := `
	UPDATE users
	SET games_played=$1, games_won=$2
	WHERE id=$3
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, u.GamesPlayed, u.GamesWon, u.ID)
		if err != nil {
			return fmt.Errorf("failed to update stats for %s: %w", u.Username, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, u.Username)
		}
		return nil
	})
}

// Users adapts the package-level queries to the interfaces consumed by the
// router and HTTP handlers.
type Users struct{}

func (Users) CreateUser(ctx context.Context, u *models.User) error {
	return CreateUser(ctx, u)
}

func (Users) GetUser(ctx context.Context, username string) (*models.User, error) {
	return GetUserByUsername(ctx, username)
}

// GetUserStats creates the row on first use so token-only players get counted.
func (Users) GetUserStats(ctx context.Context, username string) (*models.User, error) {
	return GetOrCreateUser(ctx, username)
}

func (Users) SaveUserStats(ctx context.Context, u *models.User) error {
	return SaveUserStats(ctx, u)
}
