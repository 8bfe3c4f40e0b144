package queue

const (
	TypeDocumentIngest = "document:ingest"
)

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	OwnerScope string `json:"owner_scope"`
}
