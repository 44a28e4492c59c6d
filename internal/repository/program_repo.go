package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// ProgramRequirementRepository looks up graduation minimums per program.
type ProgramRequirementRepository interface {
	GetByProgram(ctx context.Context, program string) (models.ProgramRequirement, error)
}

type programRequirementRepository struct {
	db *gorm.DB
}

// NewProgramRequirementRepository constructs the repository.
func NewProgramRequirementRepository(db *gorm.DB) ProgramRequirementRepository {
	return &programRequirementRepository{db: db}
}

func (r *programRequirementRepository) GetByProgram(ctx context.Context, program string) (models.ProgramRequirement, error) {
	var requirement models.ProgramRequirement
	if err := r.db.WithContext(ctx).Where("program = ?", program).First(&requirement).Error; err != nil {
		return models.ProgramRequirement{}, err
	}
	return requirement, nil
}
