package conversation

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/service"
	"github.com/rs/zerolog"
)

// User-facing texts.
const (
	textWelcome        = "Welcome to Trilium Bot! Please select an option:"
	textMainMenu       = "Main Menu:"
	textUseMenu        = "Please use the menu to select an action:"
	textUseMenuFirst   = "Please use the menu to select an action first:"
	textCancelled      = "Cancelled. Please select an option:"
	textProcessing     = "Still working on your previous request, please wait."
	textExpired        = "This button has expired."
	textUnknownCommand = "Unknown command. Please select an option:"

	textTodoList        = "Current TODO List:"
	textTodoAdded       = "TODO item added. Current TODO List:"
	textTodoUpdated     = "TODO item updated. Current TODO List:"
	textTodoDeleted     = "TODO item deleted. Current TODO List:"
	textTodoKept        = "Deletion cancelled. Current TODO List:"
	textTodoAddPrompt   = "Please enter the description for your new TODO item:"
	textTodoNewText     = "Please enter the new description for this TODO item:"
	textTodoEmpty       = "The description cannot be empty."
	textPickUpdate      = "Select a TODO item to update:"
	textPickDelete      = "Select a TODO item to delete:"
	textPickWithButtons = "Please choose an item with the buttons above."
	textRefresh         = "The list has changed, please refresh. Current TODO List:"
	textAlreadyDone     = "Already updated."
	textUpToDate        = "Already up to date."
	textMalformed       = "Today's note has a TODO list that cannot be read. Please fix it in Trilium."
	textUnavailable     = "The note store is unavailable right now, please try again later."
	textRolloverUsage   = "Usage: /rollover on, /rollover off or /rollover HH:MM"

	textNoteTitle      = "Please enter the title for your note:"
	textNoteBody       = "Enter the content for your note:"
	textNoteNeedsTitle = "The title cannot be empty. Please enter the title for your note:"
	textAttachName     = "Please enter a name for your attachment:"
	textAttachNeedName = "The name cannot be empty. Please enter a name for your attachment:"
	textAttachFile     = "Please send the file for attachment:"
	textAttachNotText  = "Please send a file, not text!"
	textQuickAdded     = "Message added to Trilium"
)

// Machine turns chat events into service calls and renders. It is safe
// for concurrent use; events of one chat are serialized through the
// session store.
type Machine struct {
	sessions   *SessionStore
	checklists service.ChecklistService
	notes      service.NoteService
	chats      service.ChatService
	rollover   service.RolloverService
	reschedule func(ctx context.Context) error
	location   *time.Location
	now        func() time.Time
	started    time.Time
	logger     zerolog.Logger
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Sessions   *SessionStore
	Checklists service.ChecklistService
	Notes      service.NoteService
	Chats      service.ChatService
	Rollover   service.RolloverService

	// Reschedule is called after the rollover time of day changed.
	Reschedule func(ctx context.Context) error

	// Location decides which calendar day "today" is. Defaults to Local.
	Location *time.Location
	Now      func() time.Time
	Logger   zerolog.Logger
}

func NewMachine(d Deps) *Machine {
	if d.Sessions == nil {
		d.Sessions = NewSessionStore()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Machine{
		sessions:   d.Sessions,
		checklists: d.Checklists,
		notes:      d.Notes,
		chats:      d.Chats,
		rollover:   d.Rollover,
		reschedule: d.Reschedule,
		location:   d.Location,
		now:        d.Now,
		started:    d.Now(),
		logger:     d.Logger.With().Str("component", "conversation").Logger(),
	}
}

// Sessions exposes the session store.
func (m *Machine) Sessions() *SessionStore {
	return m.sessions
}

func (m *Machine) today() domain.Date {
	return domain.DateOf(m.now().In(m.location))
}

// Handle processes one event and returns what to show. While another
// event of the same chat is in flight only cancel and id are served; a
// result superseded by a cancel is dropped and an empty Render returned.
func (m *Machine) Handle(ctx context.Context, ev Event) Render {
	if ev.Kind == EventCommand {
		switch ev.Text {
		case "cancel":
			m.sessions.Cancel(ev.ChatID)
			return withMenu(textCancelled)
		case "id":
			return prompt(idText(ev.UserID))
		}
	}

	sess, ok := m.sessions.Begin(ev.ChatID)
	if !ok {
		return Render{Notice: textProcessing}
	}

	r, next := m.dispatch(ctx, sess, ev)
	if !m.sessions.End(sess, next) {
		m.logger.Debug().Int64("chat_id", ev.ChatID).Msg("session cancelled while handling event, result dropped")
		return Render{}
	}
	return r
}

func (m *Machine) dispatch(ctx context.Context, sess Session, ev Event) (Render, Session) {
	switch ev.Kind {
	case EventCommand:
		return m.onCommand(ctx, sess, ev)
	case EventButton:
		a, err := DecodeAction(ev.Token)
		if err != nil {
			m.logger.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("undecodable button")
			r := withMenu(textMainMenu)
			r.Notice = textExpired
			return r, sess.Reset()
		}
		r, next := m.onButton(ctx, sess, ev, a)
		r.Edit = r.Text != ""
		return r, next
	case EventFile:
		return m.onFile(ctx, sess, ev)
	default:
		return m.onText(ctx, sess, ev)
	}
}

func (m *Machine) onCommand(ctx context.Context, sess Session, ev Event) (Render, Session) {
	switch ev.Text {
	case "start":
		return withMenu(textWelcome), sess.Reset()
	case "todo":
		return m.showList(ctx, sess.Reset(), textTodoList)
	case "move":
		res, err := m.rollover.RolloverChat(ctx, ev.ChatID, m.now().In(m.location))
		if err != nil {
			return m.failure(ctx, err, sess, sess.Reset())
		}
		r, next := m.showList(ctx, sess.Reset(), moveText(res.Carried))
		if len(res.Malformed) > 0 {
			r.Text = skippedText(res.Malformed) + "\n" + r.Text
		}
		return r, next
	case "rollover":
		return m.rolloverSettings(ctx, sess, ev.Args)
	default:
		return withMenu(textUnknownCommand), sess.Reset()
	}
}

// rolloverSettings shows the daily rollover setting, or changes it when
// args is on, off or a time of day.
func (m *Machine) rolloverSettings(ctx context.Context, sess Session, args string) (Render, Session) {
	var (
		s   domain.Settings
		err error
	)
	switch arg := strings.ToLower(args); arg {
	case "":
		s, err = m.chats.Settings(ctx)
	case "on", "off":
		s, err = m.chats.SetRolloverEnabled(ctx, arg == "on")
	default:
		s, err = m.chats.SetRolloverTime(ctx, arg)
		if errors.Is(err, domain.ErrValidation) {
			return withMenu(textRolloverUsage), sess.Reset()
		}
		if err == nil && m.reschedule != nil {
			if rerr := m.reschedule(ctx); rerr != nil {
				m.logger.Error().Err(rerr).Str("at", s.RolloverTime).Msg("rescheduling rollover failed")
			}
		}
	}
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	return withMenu(fmt.Sprintf("Daily rollover is %s at %s.", onOff(s.RolloverEnabled), s.RolloverTime)), sess.Reset()
}

func (m *Machine) onButton(ctx context.Context, sess Session, ev Event, a Action) (Render, Session) {
	switch a.Op {
	case OpMenu:
		return withMenu(textMainMenu), sess.Reset()
	case OpTodoList:
		return m.refresh(ctx, sess, a)
	case OpToggleQuickAdd:
		s, err := m.chats.ToggleQuickAdd(ctx)
		if err != nil {
			return m.failure(ctx, err, sess, sess.Reset())
		}
		return withMenu("Quick Add mode is now " + onOff(s.QuickAdd)), sess.Reset()
	case OpCreateNote:
		return prompt(textNoteTitle), sess.Enter(AwaitingNoteTitle, Payload{})
	case OpCreateAttachment:
		return prompt(textAttachName), sess.Enter(AwaitingAttachmentName, Payload{})
	case OpStatus:
		return withMenu("Bot has been running for " + m.now().Sub(m.started).Round(time.Second).String()), sess.Reset()
	case OpID:
		return withMenu(idText(ev.UserID)), sess.Reset()
	case OpTodoAdd:
		return prompt(textTodoAddPrompt), sess.Enter(AwaitingTodoAddText, Payload{})
	case OpTodoUpdate:
		return m.showPicker(ctx, sess.Enter(AwaitingTodoUpdateTarget, Payload{Date: m.today()}), textPickUpdate, OpTodoUpdatePick)
	case OpTodoDelete:
		return m.showPicker(ctx, sess.Enter(AwaitingTodoDeleteTarget, Payload{Date: m.today()}), textPickDelete, OpTodoDeletePick)
	case OpTodoToggle:
		return m.toggle(ctx, sess, a)
	case OpTodoUpdatePick:
		return m.pickForUpdate(ctx, sess, a)
	case OpTodoDeletePick:
		return m.pickForDelete(ctx, sess, a)
	case OpTodoDeleteYes:
		return m.confirmDelete(ctx, sess, a)
	case OpTodoDeleteNo:
		return m.showList(ctx, sess.Reset(), textTodoKept)
	}
	return withMenu(textMainMenu), sess.Reset()
}

func (m *Machine) onText(ctx context.Context, sess Session, ev Event) (Render, Session) {
	text := ev.Text
	switch sess.Mode {
	case Idle:
		return m.quickAdd(ctx, sess, ev)

	case AwaitingNoteTitle:
		title := strings.TrimSpace(text)
		if title == "" {
			return prompt(textNoteNeedsTitle), sess
		}
		return prompt(textNoteBody), sess.Enter(AwaitingNoteBody, Payload{Title: title})

	case AwaitingNoteBody:
		note, err := m.notes.CreateNote(ctx, sess.Payload.Title, text)
		if err != nil {
			return m.failure(ctx, err, sess, sess)
		}
		return withMenu("Note created successfully!\nNote ID: " + note.ID), sess.Reset()

	case AwaitingAttachmentName:
		name := strings.TrimSpace(text)
		if name == "" {
			return prompt(textAttachNeedName), sess
		}
		return prompt(textAttachFile), sess.Enter(AwaitingAttachmentFile, Payload{Title: name})

	case AwaitingAttachmentFile:
		return prompt(textAttachNotText), sess

	case AwaitingTodoAddText:
		// New items go to the day the text arrives on, so a prompt left open
		// over midnight does not write into an already rolled over note.
		v, err := m.checklists.Add(ctx, ev.ChatID, m.today(), text)
		if errors.Is(err, domain.ErrValidation) {
			return prompt(textTodoEmpty + " " + textTodoAddPrompt), sess
		}
		if err != nil {
			return m.failure(ctx, err, sess, sess)
		}
		return listRender(textTodoAdded, v), sess.Reset()

	case AwaitingTodoUpdateText:
		v, err := m.checklists.UpdateText(ctx, ev.ChatID, sess.Payload.Date, sess.Payload.ItemID, text)
		if errors.Is(err, domain.ErrValidation) {
			return prompt(textTodoEmpty + " " + textTodoNewText), sess
		}
		if err != nil {
			return m.failure(ctx, err, sess, sess)
		}
		return listRender(textTodoUpdated, v), sess.Reset()

	case AwaitingTodoUpdateTarget, AwaitingTodoDeleteTarget, AwaitingTodoDeleteConfirm:
		return prompt(textPickWithButtons), sess
	}
	return withMenu(textUseMenu), sess.Reset()
}

func (m *Machine) onFile(ctx context.Context, sess Session, ev Event) (Render, Session) {
	if sess.Mode != AwaitingAttachmentFile || ev.File == nil {
		return withMenu(textUseMenuFirst), sess
	}
	data, err := ev.File.Fetch(ctx)
	if err != nil {
		m.logger.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("downloading upload failed")
		return withMenu("Error uploading attachment!"), sess.Reset()
	}
	name := sess.Payload.Title
	if path.Ext(name) == "" {
		name += path.Ext(ev.File.Name)
	}
	att, err := m.notes.CreateAttachment(ctx, name, data)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return withMenu("The attachment note was not found."), sess.Reset()
	case err != nil:
		return m.failure(ctx, err, sess, sess.Reset())
	}
	return withMenu("Attachment uploaded successfully!\nAttachment ID: " + att.ID), sess.Reset()
}

func (m *Machine) quickAdd(ctx context.Context, sess Session, ev Event) (Render, Session) {
	settings, err := m.chats.Settings(ctx)
	if err != nil {
		return m.failure(ctx, err, sess, sess)
	}
	if !settings.QuickAdd {
		return withMenu(textUseMenu), sess
	}
	if _, err := m.notes.QuickAdd(ctx, ev.ChatID, m.today(), ev.Text); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return withMenu(textUseMenu), sess
		}
		return m.failure(ctx, err, sess, sess)
	}
	return withMenu(textQuickAdded), sess
}

// current loads today's checklist and rejects a tap rendered against a
// different one with a refreshed list.
func (m *Machine) current(ctx context.Context, sess Session, a Action) (*service.ChecklistView, *Render, Session, error) {
	v, err := m.checklists.View(ctx, sess.ChatID, m.today())
	if err != nil {
		return nil, nil, sess, err
	}
	if v.Snapshot != a.Snapshot {
		r := listRender(textRefresh, v)
		r.Notice = "List changed"
		return v, &r, sess.Reset(), nil
	}
	return v, nil, sess, nil
}

func (m *Machine) toggle(ctx context.Context, sess Session, a Action) (Render, Session) {
	v, stale, next, err := m.current(ctx, sess, a)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	if stale != nil {
		return *stale, next
	}
	v, err = m.checklists.Toggle(ctx, sess.ChatID, v.Date, a.ItemID)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	return listRender(textTodoList, v), sess.Reset()
}

func (m *Machine) pickForUpdate(ctx context.Context, sess Session, a Action) (Render, Session) {
	if sess.Mode != AwaitingTodoUpdateTarget {
		return m.expired(ctx, sess)
	}
	v, stale, next, err := m.current(ctx, sess, a)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	if stale != nil {
		return *stale, next
	}
	it, err := v.Checklist.Item(a.ItemID)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	next = sess.Enter(AwaitingTodoUpdateText, Payload{Date: v.Date, ItemID: it.ID})
	return prompt(fmt.Sprintf("%s\nCurrent: %s", textTodoNewText, it.Text)), next
}

func (m *Machine) pickForDelete(ctx context.Context, sess Session, a Action) (Render, Session) {
	if sess.Mode != AwaitingTodoDeleteTarget {
		return m.expired(ctx, sess)
	}
	v, stale, next, err := m.current(ctx, sess, a)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	if stale != nil {
		return *stale, next
	}
	it, err := v.Checklist.Item(a.ItemID)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	next = sess.Enter(AwaitingTodoDeleteConfirm, Payload{Date: v.Date, ItemID: it.ID})
	return Render{
		Text:    fmt.Sprintf("Are you sure you want to delete '%s'?", it.Text),
		Buttons: confirmMarkup(it.ID, v.Snapshot),
	}, next
}

func (m *Machine) confirmDelete(ctx context.Context, sess Session, a Action) (Render, Session) {
	if sess.Mode != AwaitingTodoDeleteConfirm || sess.Payload.ItemID != a.ItemID {
		return m.expired(ctx, sess)
	}
	_, stale, next, err := m.current(ctx, sess, a)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	if stale != nil {
		return *stale, next
	}
	v, err := m.checklists.Delete(ctx, sess.ChatID, sess.Payload.Date, a.ItemID)
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	return listRender(textTodoDeleted, v), sess.Reset()
}

// expired answers a button that belongs to an interaction which has
// since been finished or cancelled.
func (m *Machine) expired(ctx context.Context, sess Session) (Render, Session) {
	r, next := m.showList(ctx, sess.Reset(), textTodoList)
	r.Notice = textExpired
	return r, next
}

func (m *Machine) showList(ctx context.Context, next Session, header string) (Render, Session) {
	v, err := m.checklists.View(ctx, next.ChatID, m.today())
	if err != nil {
		return m.failure(ctx, err, next, next)
	}
	return listRender(header, v), next
}

// refresh shows the current list. A tapped list that still matches the
// stored checklist is only acknowledged, not redrawn.
func (m *Machine) refresh(ctx context.Context, sess Session, a Action) (Render, Session) {
	v, err := m.checklists.View(ctx, sess.ChatID, m.today())
	if err != nil {
		return m.failure(ctx, err, sess, sess.Reset())
	}
	if a.Snapshot != "" && a.Snapshot == v.Snapshot {
		return Render{Notice: textUpToDate}, sess.Reset()
	}
	return listRender(textTodoList, v), sess.Reset()
}

func (m *Machine) showPicker(ctx context.Context, next Session, header string, op Op) (Render, Session) {
	v, err := m.checklists.View(ctx, next.ChatID, next.Payload.Date)
	if err != nil {
		return m.failure(ctx, err, next, next.Reset())
	}
	return Render{Text: header, Buttons: pickMarkup(v.Checklist, v.Snapshot, op)}, next
}

// failure renders err for the chat. Validation and missing items are
// answered in place; store trouble leaves the session as onError so the
// user can retry.
func (m *Machine) failure(ctx context.Context, err error, sess, onError Session) (Render, Session) {
	log := m.logger.With().Int64("chat_id", sess.ChatID).Str("mode", sess.Mode.String()).Logger()
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		log.Debug().Err(err).Msg("item already gone")
		r, next := m.showList(ctx, sess.Reset(), textAlreadyDone+" "+textTodoList)
		r.Notice = textAlreadyDone
		return r, next
	case errors.Is(err, domain.ErrMalformedContent):
		log.Error().Err(err).Msg("day note checklist is malformed")
		return withMenu(textMalformed), sess.Reset()
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Warn().Err(err).Msg("note store unavailable")
		return Render{Notice: textUnavailable}, onError
	default:
		log.Error().Err(err).Msg("handling event failed")
		return Render{Notice: textUnavailable}, onError
	}
}

func listRender(header string, v *service.ChecklistView) Render {
	return Render{Text: header, Buttons: checklistMarkup(v.Checklist, v.Snapshot)}
}

func idText(userID int64) string {
	return fmt.Sprintf("Your Telegram ID is: %d", userID)
}

func moveText(n int) string {
	switch n {
	case 0:
		return "No unfinished todos to move. Current TODO List:"
	case 1:
		return "Moved 1 unfinished todo from yesterday. Current TODO List:"
	}
	return fmt.Sprintf("Moved %d unfinished todos from yesterday. Current TODO List:", n)
}

func skippedText(dates []domain.Date) string {
	s := make([]string, len(dates))
	for i, d := range dates {
		s[i] = d.String()
	}
	return "Skipped unreadable TODO list of " + strings.Join(s, ", ") + "."
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
