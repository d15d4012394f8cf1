package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rexi-api/internal/domain/repository"
	pkgtracer "rexi-api/pkg/tracer"
)

// TxManager 事务管理器
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction 在事务中执行 fn；嵌套调用复用外层事务。
// fn 返回错误或 panic 时回滚，panic 会在回滚后继续抛出。
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "postgres.WithTransaction")
	defer span.End()

	tx, err := m.client.db.BeginTx(ctx, nil)
	if err != nil {
		pkgtracer.RecordError(span, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, repository.TxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
		}
		pkgtracer.RecordError(span, err)
		return err
	}

	if err = tx.Commit(); err != nil {
		pkgtracer.RecordError(span, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(repository.TxKey{}).(*sql.Tx)
	return tx
}

// Querier 连接与事务共有的查询方法
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getQuerier 上下文中有事务时返回事务，否则返回连接池
func getQuerier(ctx context.Context, db *sql.DB) Querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}
