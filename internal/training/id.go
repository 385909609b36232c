package training

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad id %q", store.ErrNotFound, raw)
	}
	return id, nil
}
