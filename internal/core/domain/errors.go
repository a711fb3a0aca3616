package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown parser or provider type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrStructural indicates a hierarchy invariant would be violated.
	// Fatal to the ingestion that raised it; the existing index is untouched.
	ErrStructural = errors.New("structural error")

	// ErrEmbeddingProvider indicates the embedding provider failed after retries.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrInvalidWeights indicates fusion weights are negative or sum to zero.
	ErrInvalidWeights = errors.New("invalid fusion weights")

	// ErrInvalidFilter indicates a metadata filter references unknown keys
	// or non-scalar values.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrIntegrity indicates an orphan chunk or a missing ancestor.
	// The index should be rebuilt; it is never patched silently.
	ErrIntegrity = errors.New("index integrity error")

	// ErrTimeout indicates a query ran out of time and returned partial results.
	ErrTimeout = errors.New("timeout")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRerankUnavailable indicates no re-rank provider is configured.
	ErrRerankUnavailable = errors.New("rerank provider unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// StructuralError reports a hierarchy invariant violation found while
// building a workbook's chunk tree.
type StructuralError struct {
	WorkbookID string
	// Path locates the offending node, e.g. "Sales/section[2]".
	Path   string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("structural error in workbook %q: %s", e.WorkbookID, e.Reason)
	}
	return fmt.Sprintf("structural error in workbook %q at %s: %s", e.WorkbookID, e.Path, e.Reason)
}

// Is reports whether target is ErrStructural.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

// EmbeddingProviderError wraps the last provider failure after retries
// were exhausted.
type EmbeddingProviderError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *EmbeddingProviderError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEmbeddingProvider.
func (e *EmbeddingProviderError) Is(target error) bool {
	return target == ErrEmbeddingProvider
}

// ProviderStatusError is a non-success HTTP response from an embedding
// or rerank provider.
type ProviderStatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// Retryable reports whether the status is worth retrying: rate limits,
// request timeouts and server errors.
func (e *ProviderStatusError) Retryable() bool {
	return e.Status == 408 || e.Status == 429 || e.Status >= 500
}

// IsRetryable reports whether err may succeed on a later attempt.
// Errors that are not a ProviderStatusError are treated as transient.
func IsRetryable(err error) bool {
	var se *ProviderStatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, ErrDimensionMismatch) && !errors.Is(err, ErrInvalidInput)
}

// IntegrityError reports a chunk whose ancestor chain cannot be resolved.
type IntegrityError struct {
	ChunkID   string
	MissingID string
	Reason    string
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "integrity error on chunk %s", e.ChunkID)
	if e.MissingID != "" {
		fmt.Fprintf(&b, ": ancestor %s missing", e.MissingID)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	b.WriteString(" (rebuild the index)")
	return b.String()
}

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
