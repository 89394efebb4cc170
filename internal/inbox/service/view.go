package service

import (
	"github.com/samber/lo"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
)

// view is a recipient's read model. It is owned by one subscription worker.
type view struct {
	messages []*models.Message
	seen     map[id.MessageID]struct{}
}

func newView() *view {
	return &view{seen: make(map[id.MessageID]struct{})}
}

// merge adds messages not yet in the view and reports whether anything changed.
func (v *view) merge(msgs ...*models.Message) bool {
	changed := false
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if _, ok := v.seen[msg.ID]; ok {
			continue
		}
		v.seen[msg.ID] = struct{}{}
		v.messages = append(v.messages, msg.Clone())
		changed = true
	}
	return changed
}

// render returns the view newest first. Each call returns fresh copies so a
// consumer cannot alter what later renders show.
func (v *view) render() []*models.Message {
	sorted := models.SortNewestFirst(v.messages)
	return lo.Map(sorted, func(m *models.Message, _ int) *models.Message {
		return m.Clone()
	})
}

func (v *view) len() int {
	return len(v.messages)
}
