package httpadapter

import (
	"net/http"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// statusByKind is checked in order; the first matching sentinel wins.
var statusByKind = []struct {
	kind   error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrDocumentNotFound, http.StatusNotFound},
	{domain.ErrTemporary, http.StatusServiceUnavailable},
}

func mapErrorToHTTPStatus(err error) int {
	for _, entry := range statusByKind {
		if domain.IsKind(err, entry.kind) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
