package sqlite

import (
	"context"
	"database/sql"

	"github.com/corvid-labs/facegate/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u          domain.User
		totpSecret sql.NullString
		faceTmpl   sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&totpSecret,
		&faceTmpl,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.FaceTemplate = mapNullStringPtr(faceTmpl)
	return u, nil
}

const selectUserColumns = `
	id, username, email, phone, password_hash, totp_secret, face_template,
	created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT`+selectUserColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT`+selectUserColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, phone, password_hash, totp_secret, face_template)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.Phone, u.PasswordHash,
		mapOptionalString(u.TOTPSecret), mapOptionalString(u.FaceTemplate),
	)
	return mapConflict(err)
}

func (r *usersRepo) UpdateFaceTemplate(ctx context.Context, userID string, template string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET face_template = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		template, userID)
	return err
}

func (r *usersRepo) ListRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *usersRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID)
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}
