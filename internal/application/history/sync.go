package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// 同步操作类型
const (
	OpAdd    = "ADD"
	OpDelete = "DELETE"
)

// 单个操作的结果状态
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// SyncData 操作数据；ADD 使用作品字段，DELETE 使用 ID 与可选的 Version
type SyncData struct {
	ID              string  `json:"id,omitempty"`
	Version         *int    `json:"version,omitempty"`
	OriginalText    string  `json:"originalText,omitempty"`
	GeneratedPrompt string  `json:"generatedPrompt,omitempty"`
	XhsTitle        *string `json:"xhsTitle,omitempty"`
	XhsContent      *string `json:"xhsContent,omitempty"`
	ImageURL        *string `json:"imageUrl,omitempty"`
	Style           *string `json:"style,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// SyncOperation 批量同步中的一个操作
type SyncOperation struct {
	Type string   `json:"type"`
	Data SyncData `json:"data"`
}

// SyncOpResult 单个操作的结果
type SyncOpResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Note   string `json:"note,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SyncResult 批量同步结果
type SyncResult struct {
	Success bool           `json:"success"`
	Results []SyncOpResult `json:"results"`
}

// SyncError 批量同步失败，整批已回滚
type SyncError struct {
	Results []SyncOpResult
	Err     error
}

func (e *SyncError) Error() string {
	return "Batch sync failed: " + ErrorMessage(e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Sync 在一个事务中执行批量 ADD / DELETE。
// 删除不存在的记录视为成功；版本不一致或任一操作失败则整批回滚并返回 *SyncError。
func (s *Service) Sync(ctx context.Context, ops []SyncOperation) (*SyncResult, error) {
	if len(ops) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "No operations provided")
	}

	var results []SyncOpResult
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		results = results[:0]
		for _, op := range ops {
			res, err := s.apply(ctx, op)
			if err != nil {
				id := op.Data.ID
				if id == "" {
					id = "unknown"
				}
				results = append(results, SyncOpResult{ID: id, Status: ResultFailed, Type: op.Type, Error: ErrorMessage(err)})
				logger.Warn(ctx, "sync operation failed", "type", op.Type, "id", id, "error", err.Error())
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, &SyncError{Results: results, Err: err}
	}
	logger.Info(ctx, "sync batch applied", "operations", len(ops))
	return &SyncResult{Success: true, Results: results}, nil
}

func (s *Service) apply(ctx context.Context, op SyncOperation) (SyncOpResult, error) {
	switch strings.ToUpper(op.Type) {
	case OpAdd:
		h := entity.NewHistory(op.Data.OriginalText, op.Data.GeneratedPrompt, "")
		h.XhsTitle = op.Data.XhsTitle
		h.XhsContent = op.Data.XhsContent
		h.ImageURL = op.Data.ImageURL
		h.Style = op.Data.Style
		if st := entity.TaskStatus(op.Data.Status); st.Valid() {
			h.Status = st
		}
		h.Version = 1
		if err := s.repo.Create(ctx, h); err != nil {
			return SyncOpResult{}, err
		}
		return SyncOpResult{ID: h.ID, Status: ResultSuccess, Type: OpAdd}, nil

	case OpDelete:
		return s.deleteOne(ctx, op.Data)

	default:
		return SyncOpResult{}, fmt.Errorf("unsupported operation: %s", op.Type)
	}
}

func (s *Service) deleteOne(ctx context.Context, data SyncData) (SyncOpResult, error) {
	ok := SyncOpResult{ID: data.ID, Status: ResultSuccess, Type: OpDelete}
	current, err := s.repo.GetByID(ctx, data.ID)
	if errors.Is(err, repository.ErrHistoryNotFound) {
		ok.Note = "Already deleted"
		return ok, nil
	}
	if err != nil {
		return SyncOpResult{}, err
	}

	if data.Version == nil {
		err = s.repo.Delete(ctx, data.ID)
	} else {
		if current.Version != *data.Version {
			return SyncOpResult{}, versionMismatch(*data.Version, current.Version)
		}
		err = s.repo.DeleteWithVersion(ctx, data.ID, *data.Version)
	}
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, repository.ErrHistoryNotFound):
		ok.Note = "Already deleted"
		return ok, nil
	case errors.Is(err, repository.ErrVersionConflict):
		latest, gerr := s.repo.GetByID(ctx, data.ID)
		if gerr != nil {
			return SyncOpResult{}, err
		}
		return SyncOpResult{}, versionMismatch(*data.Version, latest.Version)
	default:
		return SyncOpResult{}, err
	}
}

func versionMismatch(client, server int) error {
	return apperrors.New(apperrors.CodeVersionMismatch, fmt.Sprintf("Version mismatch: client=%d, server=%d", client, server))
}

// ErrorMessage 返回面向客户端的错误信息，AppError 只取 Message
func ErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
