package domain

import "fmt"

// MetadataDocumentID is the metadata key every stored chunk carries.
const MetadataDocumentID = "document_id"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded, overlapping slice of a document used for indexing.
type Chunk struct {
	DocumentID string
	ID         string
	Text       string
	Index      int
}

// ChunkID returns the store identifier of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// Record is a stored chunk: text, embedding and flat metadata.
// Distance is only set on query results.
type Record struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  map[string]string
	Distance  float64
}

// DocumentID returns the document_id metadata value of the record.
func (r Record) DocumentID() string {
	return r.Metadata[MetadataDocumentID]
}

// TaskType selects the embedding mode. Query and document embeddings of
// asymmetric encoders are not interchangeable.
type TaskType string

const (
	TaskRetrievalDocument TaskType = "retrieval_document"
	TaskRetrievalQuery    TaskType = "retrieval_query"
)

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
