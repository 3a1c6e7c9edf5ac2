// Package lifecycle tracks the per-file state machine: download counters,
// expiry keep-alive and the terminal states expired and limit_reached.
// Every transition writes its File mutation and its audit event in a single
// transaction, so a download is never served without being counted.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/logging"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// State derives the lifecycle state of f at now.
func State(f *models.File, now time.Time) models.FileState {
	return f.State(now)
}

type Ledger struct {
	tx      dbx.Transactor
	repos   repomanager.RepositoryManager
	renewal time.Duration
	logger  logging.Logger

	now   func() time.Time
	newID func() string
}

// NewLedger builds a Ledger. renewal is the keep-alive window applied to the
// expiry on every successful access.
func NewLedger(tx dbx.Transactor, repos repomanager.RepositoryManager, renewal time.Duration, logger logging.Logger) *Ledger {
	return &Ledger{
		tx:      tx,
		repos:   repos,
		renewal: renewal,
		logger:  logger.With("module", "lifecycle"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (l *Ledger) event(typ models.EventType, actor models.Principal, detail string, fileIDs ...string) *models.Event {
	return &models.Event{
		ID:        l.newID(),
		Type:      typ,
		UserID:    actor.ID,
		FileIDs:   fileIDs,
		Detail:    detail,
		CreatedAt: l.now().UTC(),
	}
}

// RecordUpload persists new file records and one upload event per file.
// Either all of them are committed or none.
func (l *Ledger) RecordUpload(ctx context.Context, files []*models.File, actor models.Principal) error {
	return l.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		fr, er := l.repos.Files(tx), l.repos.Events(tx)
		for _, f := range files {
			if err := fr.Create(ctx, f); err != nil {
				return fmt.Errorf("create file %s: %w", f.ID, err)
			}
			if err := er.Append(ctx, l.event(models.EventFileUpload, actor, fmt.Sprintf("file %s uploaded", f.Name), f.ID)); err != nil {
				return fmt.Errorf("append upload event: %w", err)
			}
		}
		return nil
	})
}

// RecordDownload counts one download of f by actor, resets the expiry to
// now+renewal and appends a download event. When the file became expired
// or ran out of downloads in the meantime the call is denied with the
// matching reason and nothing is written.
func (l *Ledger) RecordDownload(ctx context.Context, f *models.File, actor models.Principal) (*models.File, error) {
	now := l.now().UTC()
	updated := *f

	err := l.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		fr := l.repos.Files(tx)

		count, exp, err := fr.IncrementDownload(ctx, f.ID, now, now.Add(l.renewal))
		if errors.Is(err, common.ErrConditionFailed) {
			return l.explainRefusal(ctx, fr.GetByID, f.ID, now)
		}
		if err != nil {
			return err
		}
		updated.DownloadCount, updated.ExpiresAt = count, exp

		return l.repos.Events(tx).Append(ctx, l.event(models.EventFileDownload, actor, fmt.Sprintf("file %s downloaded", f.Name), f.ID))
	})
	if err != nil {
		return nil, err
	}

	if updated.LimitReached() {
		l.logger.Info(ctx, "file reached download limit", "file_id", f.ID, "count", updated.DownloadCount)
	}
	return &updated, nil
}

// explainRefusal re-reads a file whose conditional update matched no row and
// turns its current state into a denial.
func (l *Ledger) explainRefusal(ctx context.Context, get func(context.Context, string) (*models.File, error), id string, now time.Time) error {
	current, err := get(ctx, id)
	if err != nil {
		return err
	}
	switch State(current, now) {
	case models.StateExpired:
		return common.Denied(common.ReasonExpired)
	case models.StateLimitReached:
		return common.Denied(common.ReasonLimitReached)
	default:
		return common.ErrConditionFailed
	}
}

// RecordMetadataAccess appends a metadata event and, unless f has already
// expired, resets its expiry to now+renewal.
func (l *Ledger) RecordMetadataAccess(ctx context.Context, f *models.File, actor models.Principal) (*models.File, error) {
	now := l.now().UTC()
	updated := *f

	err := l.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		fr := l.repos.Files(tx)

		if !f.Expired(now) {
			exp, err := fr.ExtendExpiry(ctx, f.ID, now, now.Add(l.renewal))
			switch {
			case err == nil:
				updated.ExpiresAt = exp
			case errors.Is(err, common.ErrConditionFailed):
				// expired between read and write; only a vanished file is an error
				if _, err := fr.GetByID(ctx, f.ID); err != nil {
					return err
				}
			default:
				return err
			}
		}

		return l.repos.Events(tx).Append(ctx, l.event(models.EventFileMetadataAccess, actor, fmt.Sprintf("metadata for file %s accessed", f.Name), f.ID))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RecordDeletion removes the record of f owned by actor and appends a
// deletion event. The event keeps the file id after the row is gone.
func (l *Ledger) RecordDeletion(ctx context.Context, f *models.File, actor models.Principal) error {
	return l.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := l.repos.Files(tx).Delete(ctx, f.ID, actor.ID); err != nil {
			return err
		}
		return l.repos.Events(tx).Append(ctx, l.event(models.EventFileDeletion, actor, fmt.Sprintf("file %s deleted", f.Name), f.ID))
	})
}

// RecordDashboardAccess appends a dashboard event referencing the listed files.
func (l *Ledger) RecordDashboardAccess(ctx context.Context, actor models.Principal, fileIDs []string) error {
	return l.repos.Events(l.tx.Conn()).Append(ctx, l.event(models.EventDashboardAccess, actor, "dashboard viewed", fileIDs...))
}
