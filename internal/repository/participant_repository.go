package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"classpoll/internal/domain/participant"
	classpoll_errors "classpoll/pkg/errors"
)

type PostgresParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &PostgresParticipantRepository{db: db}
}

func (r *PostgresParticipantRepository) FindOrCreate(ctx context.Context, name, sessionToken string) (*participant.Participant, error) {
	var p participant.Participant
	err := r.db.WithContext(ctx).
		Where("session_token = ?", sessionToken).
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p = participant.Participant{Name: name, SessionToken: sessionToken}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		// Lost a race with a concurrent registration for the same token.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing participant.Participant
			if err := r.db.WithContext(ctx).Where("session_token = ?", sessionToken).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	var p participant.Participant
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classpoll_errors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresParticipantRepository) GetBySessionToken(ctx context.Context, token string) (*participant.Participant, error) {
	var p participant.Participant
	err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classpoll_errors.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresParticipantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&participant.Participant{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return classpoll_errors.ErrNotFound
	}
	return nil
}
