package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/rubiai-api/internal/models"
)

// RubricRepository defines persistence operations for rubrics and their criteria.
type RubricRepository interface {
	List(ctx context.Context) ([]models.Rubric, error)
	GetByID(ctx context.Context, id string) (models.Rubric, error)
	FindActiveByType(ctx context.Context, rubricType string) (models.Rubric, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, rubric *models.Rubric) error
	CreateBatch(ctx context.Context, rubrics []models.Rubric) error
	Save(ctx context.Context, rubric *models.Rubric) error
	Delete(ctx context.Context, id string) error
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository instantiates a GORM-backed rubric repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func orderedCriteria(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *rubricRepository) List(ctx context.Context) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Order("created_at ASC, id ASC").
		Find(&rubrics).Error
	if err != nil {
		return nil, err
	}
	return rubrics, nil
}

func (r *rubricRepository) GetByID(ctx context.Context, id string) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		First(&rubric, "id = ?", id).Error
	return rubric, err
}

// FindActiveByType returns the earliest created active rubric of the type.
func (r *rubricRepository) FindActiveByType(ctx context.Context, rubricType string) (models.Rubric, error) {
	var rubric models.Rubric
	err := r.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("type = ? AND status = ?", rubricType, models.RubricStatusActive).
		Order("created_at ASC, id ASC").
		First(&rubric).Error
	return rubric, err
}

func (r *rubricRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Rubric{}).Count(&total).Error
	return total, err
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	assignPositions(rubric)
	return r.db.WithContext(ctx).Create(rubric).Error
}

func (r *rubricRepository) CreateBatch(ctx context.Context, rubrics []models.Rubric) error {
	if len(rubrics) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rubrics {
			assignPositions(&rubrics[i])
			if err := tx.Create(&rubrics[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Save overwrites the rubric row and replaces its criteria with rubric.Criteria.
func (r *rubricRepository) Save(ctx context.Context, rubric *models.Rubric) error {
	assignPositions(rubric)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Criteria").Save(rubric).Error; err != nil {
			return err
		}
		if err := tx.Where("rubric_id = ?", rubric.ID).Delete(&models.Criterion{}).Error; err != nil {
			return err
		}
		if len(rubric.Criteria) == 0 {
			return nil
		}
		return tx.Create(&rubric.Criteria).Error
	})
}

func (r *rubricRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rubric_id = ?", id).Delete(&models.Criterion{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Rubric{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func assignPositions(rubric *models.Rubric) {
	for i := range rubric.Criteria {
		rubric.Criteria[i].Position = i
		rubric.Criteria[i].RubricID = rubric.ID
	}
}
