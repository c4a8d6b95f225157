package domain

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// DefaultNoteColor is applied when a note is created without a color.
const DefaultNoteColor = "#ffffff"

// TodoItem is a checklist entry embedded in a note.
type TodoItem struct {
	ID        string `json:"id" bson:"id"`
	Text      string `json:"text" bson:"text"`
	Completed bool   `json:"completed" bson:"completed"`
	Position  int    `json:"position" bson:"position"`
}

// Note is a user-owned document. UserID is the ownership field every access is checked against.
// Version increases on every stored update and guards read-modify-write cycles.
type Note struct {
	ID          string
	UserID      string
	Title       string
	Content     map[string]any
	ContentHTML string
	Tags        []string
	Reminder    *time.Time
	TodoItems   []TodoItem
	IsPinned    bool
	IsArchived  bool
	Color       string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TagCount is a tag with the number of notes carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EmptyContent returns an empty Quill delta.
func EmptyContent() map[string]any {
	return map[string]any{"ops": []any{}}
}

// TodoIndex returns the position of the item with id in TodoItems, or -1.
func (n *Note) TodoIndex(id string) int {
	for i := range n.TodoItems {
		if n.TodoItems[i].ID == id {
			return i
		}
	}
	return -1
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// PlainText renders the note as readable text: title, body, then the checklist.
func (n *Note) PlainText() string {
	var body string
	switch {
	case n.ContentHTML != "":
		body = htmlTagPattern.ReplaceAllString(n.ContentHTML, " ")
		body = strings.ReplaceAll(body, "&nbsp;", " ")
		body = html.UnescapeString(body)
		body = strings.TrimSpace(whitespacePattern.ReplaceAllString(body, " "))
	default:
		body = strings.TrimSpace(deltaText(n.Content))
	}

	text := fmt.Sprintf("%s. %s", n.Title, body)
	if len(n.TodoItems) > 0 {
		items := make([]string, 0, len(n.TodoItems))
		for _, item := range n.TodoItems {
			prefix := "Todo: "
			if item.Completed {
				prefix = "Completed: "
			}
			items = append(items, prefix+" "+item.Text)
		}
		text += ". Todo list: " + strings.Join(items, ". ")
	}
	return text
}

func deltaText(content map[string]any) string {
	ops, ok := content["ops"].([]any)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, op := range ops {
		m, ok := op.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := m["insert"].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}
