package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"portfoliocv/internal/domain"
)

const versionColumns = `id, user_id, version_number, storage_key, format, size_bytes,
        template_label, notes, is_active, created_at`

// CVStore - хранилище метаданных версий резюме
type CVStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error)
	ListVersions(ctx context.Context, userID uuid.UUID) ([]domain.CVVersion, error)
	GetActiveVersion(ctx context.Context, userID uuid.UUID) (*domain.CVVersion, error)
	// WithUserLock выполняет fn в одной транзакции, удерживая блокировку
	// строки пользователя. Ошибка fn откатывает транзакцию.
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx VersionTx) error) error
}

// VersionTx - операции над версиями одного пользователя внутри транзакции
type VersionTx interface {
	NextVersionNumber(ctx context.Context) (int, error)
	CountVersions(ctx context.Context) (int, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error)
	LatestVersion(ctx context.Context) (*domain.CVVersion, error)
	DeactivateAll(ctx context.Context) error
	InsertVersion(ctx context.Context, version *domain.CVVersion) error
	ActivateVersion(ctx context.Context, versionID uuid.UUID) error
	DeleteVersion(ctx context.Context, versionID uuid.UUID) error
	SetUserCVURL(ctx context.Context, url string) error
}

type CVRepository struct {
	db        *sqlx.DB
	timeout   time.Duration
	txTimeout time.Duration
}

// NewCVRepository: timeout ограничивает каждый запрос, txTimeout - всю
// транзакцию WithUserLock вместе с BEGIN и COMMIT
func NewCVRepository(db *sqlx.DB, timeout, txTimeout time.Duration) *CVRepository {
	return &CVRepository{db: db, timeout: timeout, txTimeout: txTimeout}
}

var _ CVStore = (*CVRepository)(nil)

func (r *CVRepository) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var user domain.User
	query := `SELECT id, display_name, cv_url, created_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, userID); err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

func (r *CVRepository) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var version domain.CVVersion
	query := `SELECT ` + versionColumns + ` FROM cv_versions WHERE id = $1`
	if err := r.db.GetContext(ctx, &version, query, versionID); err != nil {
		return nil, classify("get cv version", err)
	}
	return &version, nil
}

// ListVersions возвращает версии пользователя, начиная с самой новой
func (r *CVRepository) ListVersions(ctx context.Context, userID uuid.UUID) ([]domain.CVVersion, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	versions := make([]domain.CVVersion, 0)
	query := `SELECT ` + versionColumns + ` FROM cv_versions
        WHERE user_id = $1
        ORDER BY version_number DESC`
	if err := r.db.SelectContext(ctx, &versions, query, userID); err != nil {
		return nil, classify("list cv versions", err)
	}
	return versions, nil
}

func (r *CVRepository) GetActiveVersion(ctx context.Context, userID uuid.UUID) (*domain.CVVersion, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var version domain.CVVersion
	query := `SELECT ` + versionColumns + ` FROM cv_versions WHERE user_id = $1 AND is_active`
	if err := r.db.GetContext(ctx, &version, query, userID); err != nil {
		return nil, classify("get active cv version", err)
	}
	return &version, nil
}

func (r *CVRepository) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx VersionTx) error) error {
	ctx, cancel := withTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyTx(ctx, "begin transaction", err)
	}
	defer tx.Rollback()

	lockCtx, lockCancel := withTimeout(ctx, r.timeout)
	var locked uuid.UUID
	err = tx.GetContext(lockCtx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		err = classifyTx(lockCtx, "lock user", err)
	}
	lockCancel()
	if err != nil {
		return err
	}

	if err := fn(&userTx{tx: tx, userID: userID, timeout: r.timeout}); err != nil {
		if ctx.Err() != nil {
			// транзакция уже откатана по сроку, последующие ошибки вторичны
			return classifyTx(ctx, "locked sequence", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyTx(ctx, "commit transaction", err)
	}
	return nil
}

// userTx - транзакция, привязанная к заблокированному пользователю
type userTx struct {
	tx      *sqlx.Tx
	userID  uuid.UUID
	timeout time.Duration
}

// NextVersionNumber выдает следующий номер версии. Счетчик хранится у
// пользователя, поэтому номера удаленных версий повторно не выдаются.
func (t *userTx) NextVersionNumber(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	query := `
        UPDATE users
        SET cv_version_seq = GREATEST(
                cv_version_seq,
                (SELECT COALESCE(MAX(version_number), 0) FROM cv_versions WHERE user_id = $1)
            ) + 1
        WHERE id = $1
        RETURNING cv_version_seq`

	var next int
	if err := t.tx.GetContext(ctx, &next, query, t.userID); err != nil {
		return 0, classify("next version number", err)
	}
	return next, nil
}

func (t *userTx) CountVersions(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	var count int
	if err := t.tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM cv_versions WHERE user_id = $1`, t.userID); err != nil {
		return 0, classify("count cv versions", err)
	}
	return count, nil
}

func (t *userTx) GetVersion(ctx context.Context, versionID uuid.UUID) (*domain.CVVersion, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	var version domain.CVVersion
	query := `SELECT ` + versionColumns + ` FROM cv_versions WHERE id = $1 AND user_id = $2`
	if err := t.tx.GetContext(ctx, &version, query, versionID, t.userID); err != nil {
		return nil, classify("get cv version", err)
	}
	return &version, nil
}

// LatestVersion возвращает версию с наибольшим номером
func (t *userTx) LatestVersion(ctx context.Context) (*domain.CVVersion, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	var version domain.CVVersion
	query := `SELECT ` + versionColumns + ` FROM cv_versions
        WHERE user_id = $1
        ORDER BY version_number DESC
        LIMIT 1`
	if err := t.tx.GetContext(ctx, &version, query, t.userID); err != nil {
		return nil, classify("get latest cv version", err)
	}
	return &version, nil
}

func (t *userTx) DeactivateAll(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.tx.ExecContext(ctx, `UPDATE cv_versions SET is_active = FALSE WHERE user_id = $1 AND is_active`, t.userID)
	if err != nil {
		return classify("deactivate cv versions", err)
	}
	return nil
}

func (t *userTx) InsertVersion(ctx context.Context, version *domain.CVVersion) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	query := `
        INSERT INTO cv_versions (id, user_id, version_number, storage_key, format, size_bytes,
                                 template_label, notes, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at`

	err := t.tx.QueryRowxContext(
		ctx,
		query,
		version.ID,
		t.userID,
		version.VersionNumber,
		version.StorageKey,
		version.Format,
		version.SizeBytes,
		version.TemplateLabel,
		version.Notes,
		version.IsActive,
	).Scan(&version.CreatedAt)
	if err != nil {
		return classify("insert cv version", err)
	}
	version.UserID = t.userID
	return nil
}

func (t *userTx) ActivateVersion(ctx context.Context, versionID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.tx.ExecContext(ctx,
		`UPDATE cv_versions SET is_active = TRUE WHERE id = $1 AND user_id = $2`, versionID, t.userID)
	if err != nil {
		return classify("activate cv version", err)
	}
	return expectOneRow("activate cv version", result)
}

func (t *userTx) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.tx.ExecContext(ctx,
		`DELETE FROM cv_versions WHERE id = $1 AND user_id = $2`, versionID, t.userID)
	if err != nil {
		return classify("delete cv version", err)
	}
	return expectOneRow("delete cv version", result)
}

func (t *userTx) SetUserCVURL(ctx context.Context, url string) error {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.tx.ExecContext(ctx, `UPDATE users SET cv_url = $1 WHERE id = $2`, url, t.userID)
	if err != nil {
		return classify("update user cv url", err)
	}
	return expectOneRow("update user cv url", result)
}

func expectOneRow(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classifyTx учитывает истечение срока транзакции: драйвер сообщает о нем
// своей ошибкой, а не context.DeadlineExceeded
func classifyTx(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return classify(op, err)
}

// classify переводит ошибку базы в вид ошибки домена
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return domain.Wrap(domain.ErrPersistenceFailure, op, err)
}
