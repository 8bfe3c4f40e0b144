package workers

import (
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kbengine/internal/queue"
)

// NewMux wires every background task type to its worker.
func NewMux(ingest *IngestWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeDocumentIngest, ingest.ProcessTask)
	return mux
}
