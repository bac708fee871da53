package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"ragdocs/internal/ingest"
	"ragdocs/internal/retrieve"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

func validateStruct(v any) map[string]string {
	if err := validate.Struct(v); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		out := make(map[string]string, len(errs))
		for _, e := range errs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

type QueryParams struct {
	Query string `json:"query" validate:"required,max=4096"`
}

func (p *QueryParams) Validate() map[string]string { return validateStruct(p) }

// IngestParams lists files or glob patterns relative to the source
// directory. Empty means the whole source directory.
type IngestParams struct {
	Paths []string `json:"paths" validate:"omitempty,dive,required"`
}

func (p *IngestParams) Validate() map[string]string { return validateStruct(p) }

type HitResponse struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Distance   float64 `json:"distance"`
	Text       string  `json:"text"`
}

type DocumentResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Text       string `json:"text"`
}

type RetrieveResponse struct {
	Query     string             `json:"query"`
	Hits      []HitResponse      `json:"hits"`
	Documents []DocumentResponse `json:"documents"`
	Context   string             `json:"context"`
}

type AskResponse struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type IngestDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	State      string `json:"state"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

type IngestResponse struct {
	Stored    int                      `json:"stored"`
	Skipped   int                      `json:"skipped"`
	Failed    int                      `json:"failed"`
	Documents []IngestDocumentResponse `json:"documents"`
}

func newRetrieveResponse(res retrieve.Result) RetrieveResponse {
	out := RetrieveResponse{
		Query:     res.Query,
		Hits:      make([]HitResponse, len(res.Hits)),
		Documents: make([]DocumentResponse, len(res.Documents)),
		Context:   res.Context(),
	}
	for i, h := range res.Hits {
		out.Hits[i] = HitResponse{ID: h.ID, DocumentID: h.DocumentID(), Distance: h.Distance, Text: h.Document}
	}
	for i, d := range res.Documents {
		out.Documents[i] = DocumentResponse{DocumentID: d.DocumentID, Chunks: len(d.Chunks), Text: d.Text}
	}
	return out
}

func newIngestResponse(r ingest.Report) IngestResponse {
	out := IngestResponse{
		Stored:    r.Count(ingest.Stored),
		Skipped:   r.Count(ingest.Skipped),
		Failed:    r.Count(ingest.Failed),
		Documents: make([]IngestDocumentResponse, len(r.Documents)),
	}
	for i, d := range r.Documents {
		out.Documents[i] = IngestDocumentResponse{
			DocumentID: d.DocumentID,
			Path:       d.Path,
			State:      d.State.String(),
			Chunks:     d.Chunks,
		}
		if d.Err != nil {
			out.Documents[i].Error = d.Err.Error()
		}
	}
	return out
}
