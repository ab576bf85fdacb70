package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var errEmptyRequest = errors.New("classification request needs an owner and at least one transaction id")

// ClassificationRequest asks the worker to classify transactions of one owner.
// The worker reloads the rows, so the message only carries ids.
type ClassificationRequest struct {
	OwnerID        string    `json:"owner_id"`
	TransactionIDs []string  `json:"transaction_ids"`
	RequestedAt    time.Time `json:"requested_at"`
}

func NewClassificationRequest(ownerID string, ids []string) *ClassificationRequest {
	return &ClassificationRequest{
		OwnerID:        ownerID,
		TransactionIDs: append([]string(nil), ids...),
		RequestedAt:    time.Now().UTC(),
	}
}

func (m *ClassificationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClassificationRequestFromJSON decodes and checks a message body.
func ClassificationRequestFromJSON(data []byte) (*ClassificationRequest, error) {
	var msg ClassificationRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" || len(msg.TransactionIDs) == 0 {
		return nil, errEmptyRequest
	}
	return &msg, nil
}
