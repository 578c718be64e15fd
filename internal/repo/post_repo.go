package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// postColumns — список колонок для SELECT, в порядке scanPost.
const postColumns = `id, caption, image_url, platforms, scheduled_for, status,
       results, published_at, lease_token, lease_expiry, attempt,
       created_at, updated_at`

// PostRepo — репозиторий запланированных постов.
//
// Все записи атомарны на уровне строки: конкурентные читатели никогда
// не видят пост с частично применённым обновлением. Координация между
// reconciliation-проходами выражена через lease-поля (AcquireLease,
// FinalizePublish) — глобальных блокировок нет.
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo создаёт новый PostRepo.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// Put создаёт пост или замещает существующий (upsert по id).
// Замещение publishing-поста отклоняется с ErrConflict: нельзя молча
// гнаться с идущей публикацией.
func (r *PostRepo) Put(ctx context.Context, post *domain.Post) error {
	resultsJSON, err := marshalResults(post.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posts (id, caption, image_url, platforms, scheduled_for, status,
		                   results, published_at, lease_token, lease_expiry, attempt,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET caption = EXCLUDED.caption,
		    image_url = EXCLUDED.image_url,
		    platforms = EXCLUDED.platforms,
		    scheduled_for = EXCLUDED.scheduled_for,
		    status = EXCLUDED.status,
		    results = EXCLUDED.results,
		    published_at = EXCLUDED.published_at,
		    lease_token = EXCLUDED.lease_token,
		    lease_expiry = EXCLUDED.lease_expiry,
		    attempt = EXCLUDED.attempt,
		    updated_at = EXCLUDED.updated_at
		WHERE posts.status <> 'publishing'
	`
	result, err := r.pool.Exec(ctx, query,
		post.ID,
		post.Caption,
		nullString(post.ImageURL),
		post.Platforms,
		post.ScheduledFor,
		post.Status,
		resultsJSON,
		post.PublishedAt,
		post.LeaseToken,
		post.LeaseExpiry,
		post.Attempt,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Get возвращает пост по ID.
func (r *PostRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет существующий пост.
// Возвращает ErrConflict, если пост publishing, и ErrNotFound, если его нет.
func (r *PostRepo) Update(ctx context.Context, post *domain.Post) error {
	resultsJSON, err := marshalResults(post.Results)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET caption = $2, image_url = $3, platforms = $4, scheduled_for = $5,
		    status = $6, results = $7, published_at = $8, updated_at = $9
		WHERE id = $1 AND status <> 'publishing'
	`
	result, err := r.pool.Exec(ctx, query,
		post.ID,
		post.Caption,
		nullString(post.ImageURL),
		post.Platforms,
		post.ScheduledFor,
		post.Status,
		resultsJSON,
		post.PublishedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, post.ID)
	}
	return nil
}

// Delete удаляет пост по ID.
// Отсутствующий пост — no-op (nil); publishing-пост — ErrConflict.
func (r *PostRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM posts WHERE id = $1 AND status <> 'publishing'`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	err = r.conflictOrNotFound(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListByStatus возвращает все посты с указанным статусом.
func (r *PostRepo) ListByStatus(ctx context.Context, status domain.PostStatus) ([]domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 ORDER BY scheduled_for ASC`
	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list posts by status: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListDueBefore возвращает посты, подлежащие публикации на момент now:
// scheduled-посты с наступившим scheduled_for плюс publishing-посты
// с истёкшим lease (держатель упал посреди публикации — забираем).
func (r *PostRepo) ListDueBefore(ctx context.Context, now time.Time, limit int) ([]domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE (status = 'scheduled' AND scheduled_for <= $1)
		   OR (status = 'publishing' AND lease_expiry <= $1)
		ORDER BY scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// AcquireLease атомарно переводит пост scheduled → publishing под lease.
// Возвращает false, если пост уже захвачен другим проходом с живым lease,
// удалён или ушёл из scheduled — это и есть гарантия не более одной
// конкурентной публикации на пост.
func (r *PostRepo) AcquireLease(ctx context.Context, id, token uuid.UUID, expiry time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'publishing', lease_token = $2, lease_expiry = $3,
		    attempt = attempt + 1, updated_at = now()
		WHERE id = $1
		  AND (status = 'scheduled'
		       OR (status = 'publishing' AND lease_expiry <= now()))
	`
	result, err := r.pool.Exec(ctx, query, id, token, expiry)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// FinalizePublish фиксирует исход публикации и снимает lease.
// Запись проходит только под нашим токеном: если lease тем временем
// истёк и был перехвачен, возвращается ErrLeaseLost и итог перехватчика
// не затирается.
func (r *PostRepo) FinalizePublish(ctx context.Context, id, token uuid.UUID, status domain.PostStatus, results []domain.PublishResult, publishedAt time.Time) error {
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET status = $3, results = $4, published_at = $5,
		    lease_token = NULL, lease_expiry = NULL, updated_at = now()
		WHERE id = $1 AND lease_token = $2
	`
	result, err := r.pool.Exec(ctx, query, id, token, status, resultsJSON, publishedAt)
	if err != nil {
		return fmt.Errorf("finalize publish: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Reschedule возвращает пост в scheduled на новое время (политика retry).
// Тоже только под нашим токеном.
func (r *PostRepo) Reschedule(ctx context.Context, id, token uuid.UUID, at time.Time) error {
	query := `
		UPDATE posts
		SET status = 'scheduled', scheduled_for = $3, results = NULL,
		    lease_token = NULL, lease_expiry = NULL, updated_at = now()
		WHERE id = $1 AND lease_token = $2
	`
	result, err := r.pool.Exec(ctx, query, id, token, at)
	if err != nil {
		return fmt.Errorf("reschedule post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLeaseLost
	}
	return nil
}

// DeleteTerminalBefore удаляет терминальные посты старше cutoff (retention).
// Возвращает количество удалённых записей.
func (r *PostRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM posts
		WHERE status IN ('published', 'failed') AND published_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal posts: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

// conflictOrNotFound различает publishing-конфликт и отсутствие записи
// после UPDATE/DELETE с нулём затронутых строк.
func (r *PostRepo) conflictOrNotFound(ctx context.Context, id uuid.UUID) error {
	var status domain.PostStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM posts WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check post status: %w", err)
	}
	if status == domain.StatusPublishing {
		return ErrConflict
	}
	return ErrNotFound
}

func marshalResults(results []domain.PublishResult) ([]byte, error) {
	if results == nil {
		return nil, nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return data, nil
}

// scanPost сканирует одну строку в Post.
func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	var imageURL *string
	var resultsJSON []byte

	err := row.Scan(
		&post.ID,
		&post.Caption,
		&imageURL,
		&post.Platforms,
		&post.ScheduledFor,
		&post.Status,
		&resultsJSON,
		&post.PublishedAt,
		&post.LeaseToken,
		&post.LeaseExpiry,
		&post.Attempt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}

	if imageURL != nil {
		post.ImageURL = *imageURL
	}
	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &post.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}

	return &post, nil
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
