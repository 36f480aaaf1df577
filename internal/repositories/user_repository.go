package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/onlinecourse/backend/internal/models"
	"go.uber.org/zap"
)

const userColumns = `id, email, username, password_hash, role, avatar, phone, oauth_provider, oauth_subject, created_at, updated_at`

// userRepository implements UserRepository
type userRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *userRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var passwordHash, oauthProvider, oauthSubject sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&passwordHash,
		&user.Role,
		&user.Avatar,
		&user.Phone,
		&oauthProvider,
		&oauthSubject,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash.String
	user.OAuthProvider = oauthProvider.String
	user.OAuthSubject = oauthSubject.String
	return user, nil
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, username, password_hash, role, avatar, oauth_provider, oauth_subject)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.Username,
		nullString(user.PasswordHash),
		user.Role,
		user.Avatar,
		nullString(user.OAuthProvider),
		nullString(user.OAuthSubject),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			if strings.Contains(err.Error(), "uq_users_username") {
				return models.ErrUsernameTaken
			}
			return models.ErrEmailTaken
		}
		r.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = int(id)
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get user", zap.Error(err), zap.String("where", where))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	return r.getOne(ctx, `id = ?`, id)
}

// GetByEmailOrUsername retrieves a user by email or username
func (r *userRepository) GetByEmailOrUsername(ctx context.Context, login string) (*models.User, error) {
	return r.getOne(ctx, `email = ? OR username = ?`, login, login)
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = ?`, email)
}

// GetByOAuth retrieves a user linked to an external identity
func (r *userRepository) GetByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.getOne(ctx, `oauth_provider = ? AND oauth_subject = ?`, provider, subject)
}

// ExistsByEmail checks if a user exists with the given email
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		r.logger.Error("failed to check email existence", zap.Error(err), zap.String("email", email))
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// ExistsByUsername checks if a user exists with the given username
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		r.logger.Error("failed to check username existence", zap.Error(err), zap.String("username", username))
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

// UpdateProfile stores username, phone and avatar of a user
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET username = ?, phone = ?, avatar = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, user.Username, user.Phone, user.Avatar, user.ID)
	if err != nil {
		if isDuplicateEntry(err) {
			return models.ErrUsernameTaken
		}
		r.logger.Error("failed to update user profile", zap.Error(err), zap.Int("user_id", user.ID))
		return fmt.Errorf("failed to update user profile: %w", err)
	}

	return requireAffected(r.logger, result, "user")
}

// UpdatePassword stores a new password hash
func (r *userRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		r.logger.Error("failed to update password", zap.Error(err), zap.Int("user_id", id))
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireAffected(r.logger, result, "user")
}

// UpdateRole changes the role of a user
func (r *userRepository) UpdateRole(ctx context.Context, id int, role models.Role) error {
	query := `UPDATE users SET role = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		r.logger.Error("failed to update role", zap.Error(err), zap.Int("user_id", id))
		return fmt.Errorf("failed to update role: %w", err)
	}

	return requireAffected(r.logger, result, "user")
}

// LinkOAuth attaches an external identity to an existing user
func (r *userRepository) LinkOAuth(ctx context.Context, id int, provider, subject string) error {
	query := `UPDATE users SET oauth_provider = ?, oauth_subject = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, provider, subject, id); err != nil {
		r.logger.Error("failed to link oauth identity", zap.Error(err), zap.Int("user_id", id))
		return fmt.Errorf("failed to link oauth identity: %w", err)
	}
	return nil
}

// List returns a page of users with their enrollment counts
func (r *userRepository) List(ctx context.Context, filter models.UserFilter) ([]models.UserListItem, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if filter.Search != "" {
		where = append(where, "(u.email LIKE ? OR u.username LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.Role != 0 {
		where = append(where, "u.role = ?")
		args = append(args, filter.Role)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM users u WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count users", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit, offset := pagination(filter.Page, filter.Count)
	query := `
		SELECT u.id, u.email, u.username, u.role, COUNT(e.id), u.created_at
		FROM users u
		LEFT JOIN enrollments e ON e.user_id = u.id
		WHERE ` + whereClause + `
		GROUP BY u.id
		ORDER BY u.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("failed to list users", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.UserListItem, 0)
	for rows.Next() {
		var u models.UserListItem
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.EnrollmentCount, &u.CreatedAt); err != nil {
			r.logger.Error("failed to scan user", zap.Error(err))
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating users", zap.Error(err))
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}

	return users, total, nil
}

// Delete removes a user together with their enrollments, payments, progress and tokens
func (r *userRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, r.logger, func(tx *sql.Tx) error {
		cascade := []string{
			`DELETE FROM lesson_completions WHERE user_id = ?`,
			`DELETE FROM user_courses WHERE user_id = ?`,
			`DELETE FROM enrollments WHERE user_id = ?`,
			`DELETE FROM payments WHERE user_id = ?`,
			`DELETE FROM user_tokens WHERE user_id = ?`,
		}
		for _, query := range cascade {
			if _, err := tx.ExecContext(ctx, query, id); err != nil {
				r.logger.Error("failed to delete user data", zap.Error(err), zap.Int("user_id", id))
				return fmt.Errorf("failed to delete user data: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			r.logger.Error("failed to delete user", zap.Error(err), zap.Int("user_id", id))
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return requireAffected(r.logger, result, "user")
	})
}
