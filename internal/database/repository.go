package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RadioUserRepository provides database operations for radio identities.
type RadioUserRepository struct {
	db *gorm.DB
}

// NewRadioUserRepository creates a new repository instance.
func NewRadioUserRepository(db *gorm.DB) *RadioUserRepository {
	return &RadioUserRepository{db: db}
}

// GetByRadioID finds a record by over-the-air radio ID.
func (r *RadioUserRepository) GetByRadioID(radioID uint32) (*RadioUser, error) {
	var user RadioUser
	if err := r.db.Where("radio_id = ?", radioID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByCallsign finds a record by callsign.
func (r *RadioUserRepository) GetByCallsign(callsign string) (*RadioUser, error) {
	var user RadioUser
	if err := r.db.Where("callsign = ?", callsign).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates or updates a single record.
func (r *RadioUserRepository) Upsert(user *RadioUser) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if !user.IsValid() {
		return fmt.Errorf("user is not valid: radio_id=%d, callsign=%s", user.RadioID, user.Callsign)
	}
	return r.db.Save(user).Error
}

// UpsertBatch creates or updates records in chunks inside one transaction.
// Invalid records are skipped rather than failing the batch.
func (r *RadioUserRepository) UpsertBatch(users []RadioUser) error {
	valid := make([]RadioUser, 0, len(users))
	for _, u := range users {
		if u.IsValid() {
			valid = append(valid, u)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		const chunk = 500
		for start := 0; start < len(valid); start += chunk {
			end := start + chunk
			if end > len(valid) {
				end = len(valid)
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "radio_id"}},
				UpdateAll: true,
			}).Create(valid[start:end]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored identities.
func (r *RadioUserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&RadioUser{}).Count(&count).Error
	return count, err
}

// NotFound reports whether the error is a missing-record error.
func NotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
