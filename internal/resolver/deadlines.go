// file: internal/resolver/deadlines.go
// version: 1.0.0
// guid: a715c373-fc73-43db-bace-0a0239c9979e

package resolver

import (
	"context"
	"strings"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DeadlineSubmission is a user's reading or listening deadline.
type DeadlineSubmission struct {
	EntityID      string `json:"entity_id"`
	Format        string `json:"format"`
	TotalQuantity int    `json:"total_quantity"`
}

// DeadlineService records community submissions.
type DeadlineService struct {
	Store database.Store
}

// Submit validates and stores a submission for userID.
func (s *DeadlineService) Submit(ctx context.Context, userID string, sub DeadlineSubmission) (*models.Deadline, error) {
	sub.EntityID = strings.TrimSpace(sub.EntityID)
	sub.Format = strings.ToLower(strings.TrimSpace(sub.Format))
	if sub.EntityID == "" {
		return nil, apperr.Validation("entity_id is required")
	}
	if strings.Contains(sub.EntityID, ":") {
		return nil, apperr.Validation("entity_id must not contain ':'")
	}
	switch sub.Format {
	case models.FormatPhysical, models.FormatEbook, models.FormatAudio:
	default:
		return nil, apperr.Validation("format must be one of physical, ebook or audio")
	}
	if sub.TotalQuantity <= 0 {
		return nil, apperr.Validation("total_quantity must be positive")
	}
	return s.Store.AddDeadline(ctx, &models.Deadline{
		EntityID:      sub.EntityID,
		UserID:        userID,
		Format:        sub.Format,
		TotalQuantity: sub.TotalQuantity,
	})
}
