package trilium

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// ErrUnauthorized indicates the ETAPI token was rejected.
var ErrUnauthorized = errors.New("trilium rejected the etapi token")

// APIError is a non-2xx ETAPI response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("trilium returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("trilium returned status %d (%s): %s", e.Status, e.Code, e.Message)
}

// Is maps ETAPI statuses onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}
