package repository

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"classpoll/internal/domain/poll"
	classpoll_errors "classpoll/pkg/errors"
)

type PostgresVoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &PostgresVoteRepository{db: db}
}

func (r *PostgresVoteRepository) VoteExists(ctx context.Context, pollID, participantID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poll.Vote{}).
		Where("poll_id = ? AND participant_id = ?", pollID, participantID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresVoteRepository) InsertVote(ctx context.Context, v *poll.Vote) error {
	res := r.db.WithContext(ctx).Create(v)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return classpoll_errors.ErrDuplicateVote
		}
		return res.Error
	}
	return nil
}

func (r *PostgresVoteRepository) GetVoteByParticipant(ctx context.Context, pollID, participantID uuid.UUID) (*poll.Vote, error) {
	var v poll.Vote
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND participant_id = ?", pollID, participantID).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classpoll_errors.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

type tallyRow struct {
	OptionID  uuid.UUID
	Text      string
	IsCorrect bool
	VoteCount int
}

func (r *PostgresVoteRepository) GetTally(ctx context.Context, pollID uuid.UUID) (*poll.Tally, error) {
	var p poll.Poll
	if err := r.db.WithContext(ctx).Select("id", "question").First(&p, "id = ?", pollID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classpoll_errors.ErrNotFound
		}
		return nil, err
	}

	var rows []tallyRow
	err := r.db.WithContext(ctx).
		Model(&poll.Option{}).
		Select("options.id AS option_id, options.text, options.is_correct, COUNT(votes.id) AS vote_count").
		Joins("LEFT JOIN votes ON votes.option_id = options.id").
		Where("options.poll_id = ?", pollID).
		Group("options.id, options.text, options.is_correct, options.display_order").
		Order("options.display_order ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	total := 0
	for _, row := range rows {
		total += row.VoteCount
	}

	tally := &poll.Tally{
		PollID:     pollID,
		Question:   p.Question,
		TotalVotes: total,
		Options:    make([]poll.OptionResult, 0, len(rows)),
	}
	for _, row := range rows {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(row.VoteCount) / float64(total) * 100))
		}
		tally.Options = append(tally.Options, poll.OptionResult{
			OptionID:   row.OptionID,
			OptionText: row.Text,
			VoteCount:  row.VoteCount,
			Percentage: pct,
			IsCorrect:  row.IsCorrect,
		})
	}
	return tally, nil
}

func (r *PostgresVoteRepository) CountVoters(ctx context.Context, pollID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&poll.Vote{}).
		Where("poll_id = ?", pollID).
		Distinct("participant_id").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
