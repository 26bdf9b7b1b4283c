package cache

import (
	"context"

	"github.com/Debayan00100101/chatt/internal/models"
)

// Noop satisfies the cache surface when Redis is not configured.
type Noop struct{}

func (Noop) GetMessages(context.Context) ([]models.Message, bool) { return nil, false }
func (Noop) SetMessages(context.Context, []models.Message)        {}
func (Noop) Invalidate(context.Context)                           {}
