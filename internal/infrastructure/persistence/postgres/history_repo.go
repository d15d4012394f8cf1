package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
)

const historyColumns = `id, original_text, generated_prompt, xhs_title, xhs_content, image_url, style, status, version, created_at, updated_at`

// HistoryRepository 作品历史仓储实现
type HistoryRepository struct {
	client *Client
}

// NewHistoryRepository 创建作品历史仓储
func NewHistoryRepository(client *Client) *HistoryRepository {
	return &HistoryRepository{client: client}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*entity.History, error) {
	var (
		h                               entity.History
		title, content, imageURL, style sql.NullString
		status                          string
	)
	if err := row.Scan(
		&h.ID, &h.OriginalText, &h.GeneratedPrompt,
		&title, &content, &imageURL, &style,
		&status, &h.Version, &h.CreatedAt, &h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	h.XhsTitle = nullable(title)
	h.XhsContent = nullable(content)
	h.ImageURL = nullable(imageURL)
	h.Style = nullable(style)
	h.Status = entity.TaskStatus(status)
	return &h, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// isInvalidID 非法 UUID 文本（22P02）按记录不存在处理
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}

// Create 创建记录
func (r *HistoryRepository) Create(ctx context.Context, h *entity.History) error {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Create")
	defer span.End()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = entity.TaskStatusPending
	}
	if h.Version == 0 {
		h.Version = 1
	}

	q := getQuerier(ctx, r.client.db)
	err := q.QueryRowContext(ctx, `
		INSERT INTO histories (id, original_text, generated_prompt, xhs_title, xhs_content, image_url, style, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		h.ID, h.OriginalText, h.GeneratedPrompt,
		h.XhsTitle, h.XhsContent, h.ImageURL, h.Style,
		string(h.Status), h.Version,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取记录
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*entity.History, error) {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	h, err := scanHistory(q.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM histories WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, repository.ErrHistoryNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return h, nil
}

// Update 部分更新，未设置的字段保持原值
func (r *HistoryRepository) Update(ctx context.Context, id string, patch entity.HistoryPatch) (*entity.History, error) {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Update")
	defer span.End()

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	q := getQuerier(ctx, r.client.db)
	h, err := scanHistory(q.QueryRowContext(ctx, `
		UPDATE histories SET
			status = COALESCE($2, status),
			image_url = COALESCE($3, image_url),
			style = COALESCE($4, style),
			xhs_title = COALESCE($5, xhs_title),
			xhs_content = COALESCE($6, xhs_content),
			generated_prompt = COALESCE($7, generated_prompt),
			original_text = COALESCE($8, original_text),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+historyColumns,
		id, status, patch.ImageURL, patch.Style,
		patch.XhsTitle, patch.XhsContent, patch.GeneratedPrompt, patch.OriginalText,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, repository.ErrHistoryNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update history: %w", err)
	}
	return h, nil
}

// Delete 删除记录
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Delete")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	res, err := q.ExecContext(ctx, `DELETE FROM histories WHERE id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return repository.ErrHistoryNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	if n == 0 {
		return repository.ErrHistoryNotFound
	}
	return nil
}

// DeleteWithVersion 带版本号校验的删除
func (r *HistoryRepository) DeleteWithVersion(ctx context.Context, id string, version int) error {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.DeleteWithVersion")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	res, err := q.ExecContext(ctx, `DELETE FROM histories WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		if isInvalidID(err) {
			return repository.ErrHistoryNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current int
	err = q.QueryRowContext(ctx, `SELECT version FROM histories WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrHistoryNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check history version: %w", err)
	}
	return repository.ErrVersionConflict
}

// List 按创建时间倒序分页
func (r *HistoryRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.History], error) {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.db)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM histories`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count histories: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM histories ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pagination.Limit(), pagination.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	defer rows.Close()

	items := make([]*entity.History, 0, pagination.Limit())
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate histories: %w", err)
	}

	return repository.NewPagedResult(items, total), nil
}

// Clear 删除全部记录
func (r *HistoryRepository) Clear(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.HistoryRepository.Clear")
	defer span.End()

	q := getQuerier(ctx, r.client.db)
	res, err := q.ExecContext(ctx, `DELETE FROM histories`)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to clear histories: %w", err)
	}
	return res.RowsAffected()
}
