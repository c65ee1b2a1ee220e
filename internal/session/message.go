package session

import (
	"encoding/json"
	"fmt"

	"shared-spreadsheet-editor/internal/sheet"
)

// Message is the websocket envelope exchanged with the browser.
type Message struct {
	Type    string          `json:"type"`
	FileID  string          `json:"file_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	User    string          `json:"user,omitempty"`
}

// Server to client message types.
const (
	TypeInit         = "INIT"
	TypeRender       = "RENDER"
	TypeFormula      = "FORMULA"
	TypeNotice       = "NOTICE"
	TypeNoticeClear  = "NOTICE_CLEAR"
	TypeLoadError    = "LOAD_ERROR"
	TypeAuthRequired = "AUTH_REQUIRED"
	TypeCommandError = "COMMAND_ERROR"
	TypeFile         = "FILE"
	TypeFileSaved    = "FILE_SAVED"
)

func newMessage(typ string, payload any) Message {
	m := Message{Type: typ}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			m.Payload = b
		}
	}
	return m
}

func (m Message) bytes() []byte {
	b, _ := json.Marshal(m)
	return b
}

// EventKind names an inbound surface event. Values match the client message
// types.
type EventKind string

const (
	EvSelect        EventKind = "SELECT"
	EvFormulaEdit   EventKind = "EDIT_FORMULA"
	EvFormulaCommit EventKind = "COMMIT_FORMULA"
	EvCellEdit      EventKind = "UPDATE_CELL"
	EvHeaderRename  EventKind = "RENAME_HEADER"
	EvInsertRow     EventKind = "INSERT_ROW"
	EvDeleteRow     EventKind = "DELETE_ROW"
	EvInsertCol     EventKind = "INSERT_COL"
	EvDeleteCol     EventKind = "DELETE_COL"
	EvToggleStyle   EventKind = "TOGGLE_STYLE"
	EvSetAlignment  EventKind = "SET_ALIGNMENT"
	EvMerge         EventKind = "MERGE"
	EvUnmerge       EventKind = "UNMERGE"
	EvUndo          EventKind = "UNDO"
	EvRedo          EventKind = "REDO"
	EvSave          EventKind = "SAVE"
	EvDownload      EventKind = "DOWNLOAD"
)

// Event is one decoded user action on the rendering surface.
type Event struct {
	Kind   EventKind
	Coord  sheet.Coord
	Ranges []sheet.Rect
	// Index is nil when the command should fall back to the selection.
	Index  *int
	Label  string
	Text   string
	Value  sheet.Value
	Style  sheet.StyleName
	Align  sheet.Alignment
	Format string
}

type eventPayload struct {
	Row    *int            `json:"row"`
	Col    *int            `json:"col"`
	Ranges []sheet.Rect    `json:"ranges"`
	Index  *int            `json:"index"`
	Label  string          `json:"label"`
	Text   string          `json:"text"`
	Value  sheet.Value     `json:"value"`
	Style  sheet.StyleName `json:"style"`
	Align  string          `json:"align"`
	Format string          `json:"format"`
}

// DecodeEvent turns a client message into an Event.
func DecodeEvent(m Message) (Event, error) {
	ev := Event{Kind: EventKind(m.Type)}
	var p eventPayload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", m.Type, err)
		}
	}
	coord := func() error {
		if p.Row == nil || p.Col == nil {
			return fmt.Errorf("%s: row and col required", m.Type)
		}
		ev.Coord = sheet.Coord{Row: *p.Row, Col: *p.Col}
		return nil
	}

	switch ev.Kind {
	case EvSelect:
		ev.Ranges = p.Ranges
		if len(ev.Ranges) == 0 {
			if err := coord(); err != nil {
				return ev, err
			}
			ev.Ranges = []sheet.Rect{{Row: ev.Coord.Row, Col: ev.Coord.Col, Rows: 1, Cols: 1}}
		}
		ev.Coord = ev.Ranges[0].Anchor()
	case EvFormulaEdit:
		ev.Text = p.Text
	case EvCellEdit:
		if err := coord(); err != nil {
			return ev, err
		}
		ev.Value = p.Value
	case EvHeaderRename:
		if p.Col == nil {
			return ev, fmt.Errorf("%s: col required", m.Type)
		}
		ev.Index = p.Col
		ev.Label = p.Label
	case EvInsertRow, EvDeleteRow, EvDeleteCol:
		ev.Index = p.Index
	case EvInsertCol:
		ev.Index = p.Index
		ev.Label = p.Label
	case EvToggleStyle:
		ev.Style = p.Style
		ev.Ranges = p.Ranges
	case EvSetAlignment:
		a, err := sheet.ParseAlignment(p.Align)
		if err != nil {
			return ev, err
		}
		ev.Align = a
		ev.Ranges = p.Ranges
	case EvMerge:
		ev.Ranges = p.Ranges
	case EvUnmerge:
		ev.Ranges = p.Ranges
		if p.Row != nil && p.Col != nil {
			ev.Ranges = []sheet.Rect{{Row: *p.Row, Col: *p.Col, Rows: 1, Cols: 1}}
		}
	case EvDownload:
		ev.Format = p.Format
		if ev.Format == "" {
			ev.Format = "csv"
		}
	case EvFormulaCommit, EvUndo, EvRedo, EvSave:
	default:
		return ev, fmt.Errorf("unknown message type %q", m.Type)
	}
	return ev, nil
}
