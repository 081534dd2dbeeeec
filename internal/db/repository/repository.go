package repository

import (
	"errors"

	"baidu-face-go/internal/core/models"

	"gorm.io/gorm"
)

// DetectionRepository is the interface the rest of the application uses to
// persist and query the detection history.
type DetectionRepository interface {
	SaveDetection(detection *models.Detection) error
	GetDetectionByID(id uint) (*models.Detection, error)
	GetDetections(limit, offset int) ([]models.Detection, int64, error)
	GetDetectionsByCamera(camera string, limit, offset int) ([]models.Detection, int64, error)
	DeleteDetection(id uint) error
	GetStatistics() (models.Statistics, error)
}

// SQLiteRepository implements DetectionRepository on GORM/SQLite.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new repository instance.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveDetection inserts or updates a detection record.
func (r *SQLiteRepository) SaveDetection(detection *models.Detection) error {
	return r.db.Save(detection).Error
}

// GetDetectionByID fetches one detection; nil without error if it is unknown.
func (r *SQLiteRepository) GetDetectionByID(id uint) (*models.Detection, error) {
	var detection models.Detection
	result := r.db.First(&detection, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &detection, nil
}

// GetDetections fetches detections with pagination, newest first.
func (r *SQLiteRepository) GetDetections(limit, offset int) ([]models.Detection, int64, error) {
	var detections []models.Detection
	var total int64

	r.db.Model(&models.Detection{}).Count(&total)
	result := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&detections)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return detections, total, nil
}

// GetDetectionsByCamera fetches detections of one camera with pagination.
func (r *SQLiteRepository) GetDetectionsByCamera(camera string, limit, offset int) ([]models.Detection, int64, error) {
	var detections []models.Detection
	var total int64

	r.db.Model(&models.Detection{}).Where("camera = ?", camera).Count(&total)
	result := r.db.Where("camera = ?", camera).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&detections)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return detections, total, nil
}

// DeleteDetection removes a detection record.
func (r *SQLiteRepository) DeleteDetection(id uint) error {
	return r.db.Delete(&models.Detection{}, id).Error
}

// GetStatistics summarizes the detection history.
func (r *SQLiteRepository) GetStatistics() (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.Model(&models.Detection{}).Count(&stats.TotalDetections).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&models.Detection{}).Where("matched = ?", true).Count(&stats.MatchedCount).Error; err != nil {
		return stats, err
	}

	var latest models.Detection
	if err := r.db.Order("created_at DESC").First(&latest).Error; err == nil {
		stats.LatestDetection = latest.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, err
	}

	if err := r.db.Where("matched = ?", true).
		Order("created_at DESC").Limit(10).Find(&stats.RecentMatches).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
