package domain

import "errors"

// Error kinds surfaced by the pipeline. Callers match them with errors.Is.
var (
	ErrIO                = errors.New("io error")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrStoreWrite        = errors.New("store write error")
	ErrStoreQuery        = errors.New("store query error")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrGenerationService = errors.New("generation service error")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// Wrap tags err with kind. The result matches both kind and err under
// errors.Is. A nil err stays nil, and an err already of that kind is
// returned unchanged.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}
