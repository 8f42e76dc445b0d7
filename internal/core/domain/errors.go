package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// Pipeline taxonomy. ErrExtraction is fatal to a document; the rest are
	// absorbed at item scope (image, descriptor, chunk) and logged.
	ErrExtraction  = errors.New("extraction failed")
	ErrDescription = errors.New("image description failed")
	ErrUnknownPage = errors.New("unknown page")
	ErrEmbedding   = errors.New("embedding failed")
	ErrSearch      = errors.New("search failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
