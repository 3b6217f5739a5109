package queue

import (
	"time"

	"github.com/meruscrap/pimapos/internal/models"
)

// AttachPhotos merges late-arriving photo rows into the queue entry for the
// given transaction. Photos already present (by id) are not duplicated.
// Returns true if an entry was updated.
func (q *Queue) AttachPhotos(transactionID string, incoming []models.TransactionPhoto, fetched bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].Record.TransactionID != transactionID {
			continue
		}

		existing := make(map[string]bool, len(q.items[i].Photos))
		for _, p := range q.items[i].Photos {
			existing[p.ID] = true
		}
		for _, p := range incoming {
			if !existing[p.ID] {
				q.items[i].Photos = append(q.items[i].Photos, p)
			}
		}
		if fetched {
			q.items[i].PhotosFetched = true
		}
		q.items[i].LastPhotoFetch = time.Now().UTC()
		return true
	}
	return false
}

// RetryPhotos reports the entry for a manual photo retry, clearing the
// fetched flag so the UI can show progress. The caller performs the fetch and
// calls AttachPhotos with the result.
func (q *Queue) RetryPhotos(transactionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].Record.TransactionID == transactionID {
			q.items[i].PhotosFetched = false
			q.items[i].PhotoRetryCount++
			return true
		}
	}
	return false
}
