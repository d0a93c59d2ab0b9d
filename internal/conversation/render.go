package conversation

import (
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// Button is an inline button; Token is the encoded Action it triggers.
type Button struct {
	Label string
	Token string
}

// Render is what the chat should show in response to an event.
type Render struct {
	// Text of the message to send. Empty means no message.
	Text    string
	Buttons [][]Button

	// Edit replaces the message the tapped button belongs to instead of
	// sending a new one.
	Edit bool

	// Notice is a short transient acknowledgement. For button taps it is
	// shown as the callback answer, otherwise sent as a message when Text
	// is empty.
	Notice string
}

// Empty reports whether there is nothing to show.
func (r Render) Empty() bool {
	return r.Text == "" && r.Notice == ""
}

const (
	doneMark   = "✅ "
	undoneMark = "🟩 "
)

func button(label string, a Action) Button {
	return Button{Label: label, Token: MustEncodeAction(a)}
}

func mainMenu() [][]Button {
	return [][]Button{
		{button("TODO List", Action{Op: OpTodoList}), button("Toggle Quick Add", Action{Op: OpToggleQuickAdd})},
		{button("Create Note", Action{Op: OpCreateNote}), button("Create Attachment", Action{Op: OpCreateAttachment})},
		{button("Status", Action{Op: OpStatus}), button("ID", Action{Op: OpID})},
	}
}

func backToMenu() []Button {
	return []Button{button("Back to Menu", Action{Op: OpMenu})}
}

// itemButtons renders one row per item whose button triggers op.
func itemButtons(c *domain.Checklist, snapshot string, op Op) [][]Button {
	rows := make([][]Button, 0, c.Len()+2)
	for _, it := range c.Items {
		label := undoneMark + it.Text
		if it.Done {
			label = doneMark + it.Text
		}
		rows = append(rows, []Button{button(label, Action{Op: op, ItemID: it.ID, Snapshot: snapshot})})
	}
	return rows
}

// checklistMarkup is the full TODO view: toggle buttons, edit actions
// and the way back. Refresh carries the snapshot so an unchanged list is
// not redrawn.
func checklistMarkup(c *domain.Checklist, snapshot string) [][]Button {
	rows := itemButtons(c, snapshot, OpTodoToggle)
	rows = append(rows,
		[]Button{
			button("Add", Action{Op: OpTodoAdd}),
			button("Update", Action{Op: OpTodoUpdate}),
			button("Delete", Action{Op: OpTodoDelete}),
		},
		append([]Button{button("Refresh", Action{Op: OpTodoList, Snapshot: snapshot})}, backToMenu()...),
	)
	return rows
}

// pickMarkup lets the user choose an item for op.
func pickMarkup(c *domain.Checklist, snapshot string, op Op) [][]Button {
	return append(itemButtons(c, snapshot, op), backToMenu())
}

func confirmMarkup(itemID int, snapshot string) [][]Button {
	return [][]Button{
		{button("Yes", Action{Op: OpTodoDeleteYes, ItemID: itemID, Snapshot: snapshot})},
		{button("No", Action{Op: OpTodoDeleteNo})},
	}
}

func withMenu(text string) Render {
	return Render{Text: text, Buttons: mainMenu()}
}

func prompt(text string) Render {
	return Render{Text: text}
}
