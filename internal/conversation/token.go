package conversation

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Op is the operation a button triggers.
type Op uint8

const (
	OpMenu Op = iota + 1
	OpTodoList
	OpToggleQuickAdd
	OpCreateNote
	OpCreateAttachment
	OpStatus
	OpID
	OpTodoToggle
	OpTodoAdd
	OpTodoUpdate
	OpTodoUpdatePick
	OpTodoDelete
	OpTodoDeletePick
	OpTodoDeleteYes
	OpTodoDeleteNo

	opLast = OpTodoDeleteNo
)

// MaxTokenLen is the largest callback payload the chat transport accepts.
const MaxTokenLen = 64

// ErrInvalidToken is returned for button payloads that do not decode to
// an Action.
var ErrInvalidToken = errors.New("invalid action token")

// Action is the decoded payload of a button. ItemID and Snapshot are set
// for operations on a single checklist item; Snapshot identifies the
// checklist the button was rendered from.
type Action struct {
	_        struct{} `cbor:",toarray"`
	Op       Op
	ItemID   int
	Snapshot string
}

// TargetsItem reports whether the operation acts on one checklist item.
func (a Action) TargetsItem() bool {
	switch a.Op {
	case OpTodoToggle, OpTodoUpdatePick, OpTodoDeletePick, OpTodoDeleteYes:
		return true
	}
	return false
}

var tokenEnc = base64.RawURLEncoding

var (
	actionEncMode cbor.EncMode
	actionDecMode cbor.DecMode
)

func init() {
	var err error
	actionEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("conversation: CBOR encoder initialization failed: " + err.Error())
	}
	actionDecMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("conversation: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeAction packs a into a compact URL-safe token.
func EncodeAction(a Action) (string, error) {
	if a.Op == 0 || a.Op > opLast {
		return "", fmt.Errorf("encoding action: unknown op %d", a.Op)
	}
	raw, err := actionEncMode.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encoding action: %w", err)
	}
	tok := tokenEnc.EncodeToString(raw)
	if len(tok) > MaxTokenLen {
		return "", fmt.Errorf("encoding action: token is %d bytes, limit %d", len(tok), MaxTokenLen)
	}
	return tok, nil
}

// MustEncodeAction is EncodeAction for actions built from trusted values.
func MustEncodeAction(a Action) string {
	tok, err := EncodeAction(a)
	if err != nil {
		panic(err)
	}
	return tok
}

// DecodeAction parses a token produced by EncodeAction.
func DecodeAction(token string) (Action, error) {
	raw, err := tokenEnc.DecodeString(token)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var a Action
	if err := actionDecMode.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if a.Op == 0 || a.Op > opLast {
		return Action{}, fmt.Errorf("%w: unknown op %d", ErrInvalidToken, a.Op)
	}
	if a.TargetsItem() && (a.ItemID <= 0 || a.Snapshot == "") {
		return Action{}, fmt.Errorf("%w: op %d needs an item and a snapshot", ErrInvalidToken, a.Op)
	}
	return a, nil
}
