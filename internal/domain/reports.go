package domain

// Source is a (title, text) pair handed to ingestion by an extraction collaborator.
// Err is set when extraction failed; such sources are skipped.
type Source struct {
	Title string
	Text  string
	Err   error
}

// IngestReport describes the outcome of ingesting one item.
type IngestReport struct {
	Title      string
	DocumentID int64
	ChunkIDs   []int64
	Unindexed  []int64
	Skipped    bool
	Err        error
}

// Indexed returns the number of chunks that reached the vector index.
func (r IngestReport) Indexed() int {
	return len(r.ChunkIDs) - len(r.Unindexed)
}

// Partial reports whether some chunks were stored but not indexed.
func (r IngestReport) Partial() bool {
	return len(r.Unindexed) > 0
}

// BatchReport aggregates per-item reports for a batch ingestion.
// Summary is a short extractive summary of the text ingested by the batch.
type BatchReport struct {
	BatchID string
	Items   []IngestReport
	Summary string
}

// Failed returns the reports whose item failed outright.
func (b BatchReport) Failed() []IngestReport {
	var out []IngestReport
	for _, r := range b.Items {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Chunks returns the total number of chunks stored across the batch.
func (b BatchReport) Chunks() int {
	n := 0
	for _, r := range b.Items {
		n += len(r.ChunkIDs)
	}
	return n
}

// Retrieval is the ordered context for a query.
// Degraded is set when the index failed and Hits is empty as a result.
type Retrieval struct {
	Query    string
	Hits     []Hit
	Degraded bool
}

// Passages returns the hit texts in rank order.
func (r Retrieval) Passages() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Text
	}
	return out
}

// Answer is the final, user-visible result of a question.
type Answer struct {
	Query    string
	Text     string
	Sources  []Hit
	Usage    Usage
	Degraded bool
}

// ConsistencyReport compares the chunk ids held by the document store with
// those held by the vector index.
type ConsistencyReport struct {
	StoreChunks  int
	IndexEntries int
	MissingIndex []int64
	Orphaned     []int64
}

// OK reports whether store and index agree.
func (c ConsistencyReport) OK() bool {
	return len(c.MissingIndex) == 0 && len(c.Orphaned) == 0
}
