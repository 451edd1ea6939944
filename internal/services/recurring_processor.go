package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/metrics"
	"fintrack/internal/models"
	"fintrack/internal/recurrence"
)

// maxCatchUp bounds how many missed occurrences one template materializes per run.
const maxCatchUp = 366

// errAdvancedElsewhere aborts an occurrence another processor already advanced.
var errAdvancedElsewhere = errors.New("recurring template advanced concurrently")

// recurringProcessor materializes due templates into transactions.
type recurringProcessor struct {
	db        *gorm.DB
	publisher events.Publisher
}

// NewRecurringProcessor creates a RecurringProcessor that publishes a
// recurring.materialized event per template it advanced.
func NewRecurringProcessor(db *gorm.DB, publisher events.Publisher) RecurringProcessor {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &recurringProcessor{db: db, publisher: publisher}
}

// ProcessDue materializes every due occurrence of every active template.
func (p *recurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	return p.process(ctx, p.db.Where("is_active = ? AND next_due_date <= ?", true, now.UTC()), now)
}

// ProcessDueForUser does the same for one user's templates.
func (p *recurringProcessor) ProcessDueForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	return p.process(ctx, p.db.Where("user_id = ? AND is_active = ? AND next_due_date <= ?", userID, true, now.UTC()), now)
}

func (p *recurringProcessor) process(ctx context.Context, query *gorm.DB, now time.Time) (int, error) {
	log := logger.Named("recurring")

	var due []models.RecurringTransaction
	if err := query.Order("next_due_date ASC").Find(&due).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	total := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rt := &due[i]
		created, err := p.processTemplate(ctx, rt, now.UTC())
		total += created
		if err != nil {
			log.Errorw("failed to process recurring transaction",
				"recurring_id", rt.ID, "user_id", rt.UserID, "materialized", created, "error", err)
			continue
		}
		if created > 0 {
			p.publisher.Publish(ctx, events.New(events.RecurringMaterialized, rt.UserID, map[string]interface{}{
				"recurring_id":  rt.ID,
				"materialized":  created,
				"next_due_date": rt.NextDueDate,
				"is_active":     rt.IsActive,
			}))
		}
	}

	metrics.RecurringMaterialized.Add(float64(total))
	log.Infow("recurring processing finished", "templates", len(due), "materialized", total)
	return total, nil
}

// processTemplate catches one template up to now, one DB transaction per
// occurrence. rt is advanced in place as occurrences commit.
func (p *recurringProcessor) processTemplate(ctx context.Context, rt *models.RecurringTransaction, now time.Time) (int, error) {
	schedule := recurrence.FromModel(rt)
	created := 0

	for i := 0; i < maxCatchUp && rt.IsActive && !rt.NextDueDate.After(now); i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		occurrence := rt.NextDueDate
		res, err := recurrence.Advance(schedule, occurrence, rt.OccurrenceCount)
		if errors.Is(err, recurrence.ErrSeriesEnded) {
			return created, p.endSeries(rt, occurrence, now)
		}
		if err != nil {
			return created, err
		}

		inserted := false
		err = p.db.Transaction(func(tx *gorm.DB) error {
			exists, err := occurrenceExists(tx, rt.ID, occurrence)
			if err != nil {
				return err
			}
			if !exists {
				recurringID := rt.ID
				t := &models.Transaction{
					UserID:      rt.UserID,
					CategoryID:  rt.CategoryID,
					Type:        rt.Type,
					Amount:      rt.Amount,
					Description: rt.Description,
					Date:        occurrence,
					RecurringID: &recurringID,
				}
				if err := tx.Create(t).Error; err != nil {
					return err
				}
				inserted = true
			}

			// Guarded on the due date we read so concurrent processors never
			// double-advance the same occurrence.
			updates := map[string]interface{}{
				"next_due_date":    res.NextDue,
				"occurrence_count": res.Occurrences,
				"is_active":        res.Active,
				"last_run_at":      now,
			}
			if !res.Active {
				updates["ended_at"] = now
			}
			result := tx.Model(&models.RecurringTransaction{}).
				Where("id = ? AND next_due_date = ?", rt.ID, occurrence).
				Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errAdvancedElsewhere
			}
			return nil
		})
		if errors.Is(err, errAdvancedElsewhere) {
			return created, nil
		}
		if err != nil {
			return created, err
		}

		if inserted {
			created++
		}
		rt.NextDueDate = res.NextDue
		rt.OccurrenceCount = res.Occurrences
		rt.IsActive = res.Active
		rt.LastRunAt = &now
		if !res.Active {
			rt.EndedAt = &now
		}
	}

	return created, nil
}

// endSeries deactivates a template whose due date is already outside its
// schedule, for example after its end date or cap was lowered.
func (p *recurringProcessor) endSeries(rt *models.RecurringTransaction, due, now time.Time) error {
	err := p.db.Model(&models.RecurringTransaction{}).
		Where("id = ? AND next_due_date = ?", rt.ID, due).
		Updates(map[string]interface{}{"is_active": false, "ended_at": now, "last_run_at": now}).Error
	if err != nil {
		return err
	}
	rt.IsActive = false
	rt.EndedAt = &now
	return nil
}
