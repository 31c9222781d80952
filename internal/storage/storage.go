// Package storage persists document records and reports on-disk footprint.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docreader/internal/models"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// RecordStore persists document records. Records are written once and never updated.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *models.Record) error
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	// DeleteRecord removes a record. It exists for the pipeline's compensating delete.
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context, offset, limit int) ([]*models.Record, error)
	ForEachRecord(ctx context.Context, fn func(*models.Record) error) error
	CountRecords(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
