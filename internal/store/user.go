package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/eduquest/internal/model"
)

const userColumns = `id, username, display_name, student_id, password_hash, role, active, created_at`

// CreateUser inserts a new user.
func (s *Store) CreateUser(u model.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (username, display_name, student_id, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.StudentID, u.PasswordHash, u.Role, u.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

// EnsureStudent returns the student registered under studentID, creating it
// on first login. A changed display name is stored.
func (s *Store) EnsureStudent(studentID, displayName string) (*model.User, error) {
	username := "student:" + studentID
	u, err := s.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		if _, err := s.CreateUser(model.User{
			Username:    username,
			DisplayName: displayName,
			StudentID:   studentID,
			Role:        model.UserRoleStudent,
			Active:      true,
		}); err != nil {
			return nil, err
		}
		return s.GetUserByUsername(username)
	}
	if u.DisplayName != displayName {
		if _, err := s.db.Exec(`UPDATE users SET display_name = ? WHERE id = ?`, displayName, u.ID); err != nil {
			return nil, err
		}
		u.DisplayName = displayName
	}
	return u, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return s.getUser(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return s.getUser(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(query string, arg any) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(query, arg).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.StudentID, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users with the given role.
func (s *Store) UserCount(role model.UserRole) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&count)
	return count, err
}
