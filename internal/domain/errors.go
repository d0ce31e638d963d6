package domain

import "errors"

// Ingestion and query errors. Adapters wrap these with fmt.Errorf and %w so
// callers can classify failures with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtraction indicates no text could be extracted from an item.
	// The item is skipped and the batch continues.
	ErrExtraction = errors.New("extraction failed")

	// ErrPersistence indicates the document store rejected a write.
	// The item's ingestion is aborted.
	ErrPersistence = errors.New("persistence failed")

	// ErrIndex indicates the vector index rejected a chunk.
	// The chunk stays in the document store flagged as unindexed.
	ErrIndex = errors.New("index failed")

	// ErrInvalidQuery indicates an empty query. It is returned before any
	// collaborator is called.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRetrieval indicates the vector index failed while answering a query.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the generation backend failed.
	ErrGeneration = errors.New("generation failed")
)
