package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"classpoll/internal/domain/poll"
	classpoll_errors "classpoll/pkg/errors"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func (r *PostgresPollRepository) CreatePollWithOptions(ctx context.Context, question string, options []poll.OptionInput, duration int) (*poll.Poll, error) {
	p := &poll.Poll{
		Question: question,
		Duration: duration,
		Status:   poll.StatusPending,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		for i, opt := range options {
			o := poll.Option{
				PollID:       p.ID,
				Text:         opt.Text,
				IsCorrect:    opt.IsCorrect,
				DisplayOrder: i,
			}
			if err := tx.Create(&o).Error; err != nil {
				return err
			}
			p.Options = append(p.Options, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresPollRepository) GetPollByID(ctx context.Context, id uuid.UUID) (*poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classpoll_errors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPollRepository) GetActivePoll(ctx context.Context) (*poll.Poll, error) {
	var p poll.Poll
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("status = ?", poll.StatusActive).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPollRepository) GetPollHistory(ctx context.Context) ([]poll.Poll, error) {
	var polls []poll.Poll
	err := r.db.WithContext(ctx).
		Where("status = ?", poll.StatusCompleted).
		Order("ended_at DESC").
		Find(&polls).Error
	if err != nil {
		return nil, err
	}
	return polls, nil
}

func (r *PostgresPollRepository) HasActivePoll(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("status = ?", poll.StatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresPollRepository) SetPollStatus(ctx context.Context, id uuid.UUID, status poll.Status) (*poll.Poll, error) {
	updates := map[string]interface{}{"status": status}
	now := time.Now().UTC()
	switch status {
	case poll.StatusActive:
		updates["started_at"] = now
	case poll.StatusCompleted:
		updates["ended_at"] = now
	}

	res := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, classpoll_errors.ErrNotFound
	}

	return r.GetPollByID(ctx, id)
}
