package llamastack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"laptop-refresh/shared"
)

// Content is the platform's interleaved content: a plain string, one item,
// or a list of items. It always decodes into a list.
type Content []shared.ContentItem

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{{Type: "text", Text: text}}
	case '{':
		var item shared.ContentItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*c = Content{item}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make(Content, 0, len(raw))
		for _, r := range raw {
			var nested Content
			if err := nested.UnmarshalJSON(r); err != nil {
				return err
			}
			items = append(items, nested...)
		}
		*c = items
	default:
		return fmt.Errorf("unsupported content %s", string(data))
	}
	return nil
}

// Text concatenates the text of all items.
func (c Content) Text() string {
	var builder strings.Builder
	for _, item := range c {
		builder.WriteString(item.Text)
	}
	return builder.String()
}
