// File: internal/repository/conversation/conversation_repository.go
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/iyunix/go-chatrelay/internal/domain"
)

var ErrConversationNotFound = errors.New("conversation not found")
var ErrUnauthorizedAccess = errors.New("unauthorized access to conversation")

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	if err := r.validateConversationInput(conv); err != nil {
		log.Printf("[ConversationRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if conv.LastActivityAt.IsZero() {
		conv.LastActivityAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		log.Printf("[ConversationRepository] Database error creating conversation for user ID %d: %v", conv.UserID, err)
		return nil, errors.New("database error creating conversation")
	}

	log.Printf("[ConversationRepository] Conversation created with ID: %d for user: %d", conv.ID, conv.UserID)
	return conv, nil
}

func (r *gormConversationRepository) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	if id == 0 {
		return nil, ErrConversationNotFound
	}

	var conv domain.Conversation
	err := r.db.WithContext(ctx).First(&conv, id).Error
	return r.handleFindError(err, &conv, "FindByID")
}

func (r *gormConversationRepository) FindByUserID(ctx context.Context, userID uint, limit int) ([]domain.Conversation, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_favorite DESC").
		Order("last_activity_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var convs []domain.Conversation
	if err := query.Find(&convs).Error; err != nil {
		log.Printf("[ConversationRepository] Database error listing conversations for user ID %d: %v", userID, err)
		return nil, errors.New("database error fetching conversations")
	}
	return convs, nil
}

func (r *gormConversationRepository) Update(ctx context.Context, id uint, changes Changes) error {
	if id == 0 {
		return ErrConversationNotFound
	}

	fields := map[string]interface{}{}
	if changes.Title != nil {
		fields["title"] = *changes.Title
	}
	if changes.Model != nil {
		fields["model"] = *changes.Model
	}
	if changes.LastActivityAt != nil {
		fields["last_activity_at"] = *changes.LastActivityAt
	}
	if changes.IsFavorite != nil {
		fields["is_favorite"] = *changes.IsFavorite
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		log.Printf("[ConversationRepository] Database error updating conversation ID %d: %v", id, result.Error)
		return errors.New("database error updating conversation")
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Delete removes a conversation and its messages in one transaction.
func (r *gormConversationRepository) Delete(ctx context.Context, id, userID uint) error {
	if id == 0 || userID == 0 {
		return errors.New("invalid conversation ID or user ID")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&domain.Conversation{}).Where("id = ? AND user_id = ?", id, userID).Count(&owned).Error; err != nil {
			return err
		}
		if owned == 0 {
			return ErrUnauthorizedAccess
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Conversation{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorizedAccess) {
			return err
		}
		log.Printf("[ConversationRepository] Database error deleting conversation ID %d for user ID %d: %v", id, userID, err)
		return errors.New("database error deleting conversation")
	}

	log.Printf("[ConversationRepository] Conversation deleted: ID %d for user %d", id, userID)
	return nil
}

func (r *gormConversationRepository) DeleteMultipleByUserID(ctx context.Context, ids []uint, userID uint) (int64, error) {
	if userID == 0 {
		return 0, errors.New("invalid user ID")
	}
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return 0, nil
	}
	for _, id := range unique {
		if id == 0 {
			return 0, ErrUnauthorizedAccess
		}
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&domain.Conversation{}).
			Where("id IN ? AND user_id = ?", unique, userID).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned != int64(len(unique)) {
			return ErrUnauthorizedAccess
		}

		if err := tx.Where("conversation_id IN ?", unique).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ? AND user_id = ?", unique, userID).Delete(&domain.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorizedAccess) {
			log.Printf("[ConversationRepository] Bulk delete rejected for user %d: foreign or missing ids in %v", userID, unique)
			return 0, err
		}
		log.Printf("[ConversationRepository] Database error in bulk delete for user ID %d: %v", userID, err)
		return 0, errors.New("database error in bulk conversation deletion")
	}

	log.Printf("[ConversationRepository] Bulk deleted %d conversations for user %d", deleted, userID)
	return deleted, nil
}

func (r *gormConversationRepository) validateConversationInput(conv *domain.Conversation) error {
	if conv == nil {
		return errors.New("conversation cannot be nil")
	}
	if conv.UserID == 0 {
		return errors.New("user ID is required")
	}
	if utf8.RuneCountInString(conv.Title) > 255 {
		return errors.New("title must be 255 characters or less")
	}
	return nil
}

func (r *gormConversationRepository) handleFindError(err error, conv *domain.Conversation, operation string) (*domain.Conversation, error) {
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	log.Printf("[ConversationRepository] %s database error: %v", operation, err)
	return nil, errors.New("database query failed")
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
