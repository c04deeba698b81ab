package worker

// TopicIngestTask carries one document ingestion request per message.
const TopicIngestTask = "ingest.task"

type IngestTaskPayload struct {
	DocumentID    string `json:"document_id"`
	Path          string `json:"path"`
	Name          string `json:"name"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
