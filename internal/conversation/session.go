package conversation

import (
	"sync"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// Mode is the multi-step interaction a chat is in.
type Mode int

const (
	Idle Mode = iota
	AwaitingNoteTitle
	AwaitingNoteBody
	AwaitingAttachmentName
	AwaitingAttachmentFile
	AwaitingTodoAddText
	AwaitingTodoUpdateTarget
	AwaitingTodoUpdateText
	AwaitingTodoDeleteTarget
	AwaitingTodoDeleteConfirm
)

var modeNames = map[Mode]string{
	Idle:                      "idle",
	AwaitingNoteTitle:         "awaiting_note_title",
	AwaitingNoteBody:          "awaiting_note_body",
	AwaitingAttachmentName:    "awaiting_attachment_name",
	AwaitingAttachmentFile:    "awaiting_attachment_file",
	AwaitingTodoAddText:       "awaiting_todo_add_text",
	AwaitingTodoUpdateTarget:  "awaiting_todo_update_target",
	AwaitingTodoUpdateText:    "awaiting_todo_update_text",
	AwaitingTodoDeleteTarget:  "awaiting_todo_delete_target",
	AwaitingTodoDeleteConfirm: "awaiting_todo_delete_confirm",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// Payload is the input collected so far by a multi-step interaction.
type Payload struct {
	// Title is the note title or attachment name.
	Title string

	// Date is the day note an update or delete picked its item from.
	Date domain.Date

	// ItemID is the item picked for update or deletion.
	ItemID int
}

// Session is the per-chat conversation state. It lives in memory only.
type Session struct {
	ChatID  int64
	Mode    Mode
	Payload Payload

	gen uint64
}

// Enter returns the session switched to mode with a fresh payload.
func (s Session) Enter(mode Mode, payload Payload) Session {
	s.Mode = mode
	s.Payload = payload
	return s
}

// Reset returns the session back in Idle.
func (s Session) Reset() Session {
	return s.Enter(Idle, Payload{})
}

type sessionEntry struct {
	session Session
	busy    bool
}

// SessionStore owns the sessions of all chats. A chat has at most one
// event in flight: Begin fails while another is being handled, and the
// outcome of an event is dropped by End if the chat was cancelled in the
// meantime.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*sessionEntry)}
}

func (s *SessionStore) entry(chatID int64) *sessionEntry {
	e, ok := s.sessions[chatID]
	if !ok {
		e = &sessionEntry{session: Session{ChatID: chatID}}
		s.sessions[chatID] = e
	}
	return e
}

// Get returns a copy of the chat's session.
func (s *SessionStore) Get(chatID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(chatID).session
}

// Begin marks the chat busy and returns its session. It returns false if
// an event of the chat is already in flight.
func (s *SessionStore) Begin(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(chatID)
	if e.busy {
		return Session{}, false
	}
	e.busy = true
	return e.session, true
}

// End releases the chat and stores next, unless the session was
// cancelled after started was handed out by Begin. It reports whether
// next was stored.
func (s *SessionStore) End(started, next Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(started.ChatID)
	e.busy = false
	if e.session.gen != started.gen {
		return false
	}
	next.ChatID = started.ChatID
	next.gen = started.gen
	e.session = next
	return true
}

// Cancel puts the chat back in Idle and invalidates the event in flight,
// if any. The busy mark stays until that event ends.
func (s *SessionStore) Cancel(chatID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(chatID)
	e.session = Session{ChatID: chatID, gen: e.session.gen + 1}
	return e.session
}

// busy reports whether an event of the chat is in flight.
func (s *SessionStore) busy(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(chatID).busy
}
