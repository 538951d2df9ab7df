package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

type txScope struct {
	tx          *gorm.DB
	afterCommit []func()
}

// Transactor runs fn so that every repository call made with the ctx passed to fn shares one
// database transaction. fn returning an error rolls the transaction back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txScope); ok {
		// already inside a transaction, join it
		return fn(ctx)
	}
	scope := &txScope{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope.tx = tx
		return fn(context.WithValue(ctx, txKey{}, scope))
	})
	if err != nil {
		return err
	}
	for _, hook := range scope.afterCommit {
		hook()
	}
	return nil
}

// AfterCommit runs hook once the outermost transaction carried by ctx has committed, and drops
// it on rollback. Without a transaction in ctx hook runs immediately.
func AfterCommit(ctx context.Context, hook func()) {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		scope.afterCommit = append(scope.afterCommit, hook)
		return
	}
	hook()
}

// Conn returns the transaction carried by ctx, or fallback bound to ctx.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		return scope.tx
	}
	return fallback.WithContext(ctx)
}
