package keyword

import (
	"context"
	"fmt"

	"github.com/hyperjump/docreader/internal/models"
	"github.com/hyperjump/docreader/pkg/utils"
	"go.uber.org/zap"
)

const backfillBatchSize = 100

// RecordSource iterates stored records.
type RecordSource interface {
	ForEachRecord(ctx context.Context, fn func(*models.Record) error) error
}

// Backfill indexes every record from src when idx is empty, and returns how many were indexed.
// A non-empty index is left alone.
func Backfill(ctx context.Context, idx *BleveIndex, src RecordSource, logger *zap.Logger) (int, error) {
	logger = utils.OrNop(logger)
	count, err := idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("keyword doc count: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	total := 0
	batch := make([]*models.Record, 0, backfillBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.IndexRecords(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	err = src.ForEachRecord(ctx, func(rec *models.Record) error {
		batch = append(batch, rec)
		if len(batch) == backfillBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return total, fmt.Errorf("keyword backfill: %w", err)
	}
	if total > 0 {
		logger.Info("keyword index rebuilt from record store", zap.Int("records", total))
	}
	return total, nil
}
