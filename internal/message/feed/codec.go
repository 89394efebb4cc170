package feed

import (
	"encoding/json"
	"fmt"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
)

func encodeMessage(msg *models.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode feed message: %w", err)
	}
	return data, nil
}

func decodeMessage(data []byte) (*models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	return &msg, nil
}

// notification is the postgres NOTIFY payload. It carries a reference rather
// than the message so payloads stay under the server's 8000 byte limit.
type notification struct {
	ID          id.MessageID   `json:"id"`
	RecipientID id.RecipientID `json:"recipient_id"`
}
