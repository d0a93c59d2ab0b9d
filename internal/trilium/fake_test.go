package trilium

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

const testToken = "etapi-secret"

// fakeETAPI is an in-memory Trilium server covering the endpoints the
// client uses.
type fakeETAPI struct {
	srv *httptest.Server

	mu          sync.Mutex
	seq         int
	notes       map[string]*etapiNote
	contents    map[string]string
	days        map[string]string
	attachments map[string]*etapiAttachment
	blobs       map[string][]byte
	failStatus  int
}

var dateNoteQuery = regexp.MustCompile(`^#dateNote="(\d{4}-\d{2}-\d{2})"$`)
var titleQuery = regexp.MustCompile(`^note\.title = "(.*)"$`)

func newFakeETAPI(t *testing.T) *fakeETAPI {
	t.Helper()
	f := &fakeETAPI{
		notes:       map[string]*etapiNote{},
		contents:    map[string]string{},
		days:        map[string]string{},
		attachments: map[string]*etapiAttachment{},
		blobs:       map[string][]byte{},
	}
	f.notes["root"] = &etapiNote{NoteID: "root", Title: "root", Type: "text", ParentNoteIDs: []string{"none"}}
	f.setContent("root", "")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /etapi/calendar/days/{date}", f.calendarDay)
	mux.HandleFunc("GET /etapi/notes", f.searchNotes)
	mux.HandleFunc("GET /etapi/notes/{id}", f.getNote)
	mux.HandleFunc("GET /etapi/notes/{id}/content", f.getContent)
	mux.HandleFunc("PUT /etapi/notes/{id}/content", f.putContent)
	mux.HandleFunc("POST /etapi/create-note", f.createNote)
	mux.HandleFunc("POST /etapi/attachments", f.createAttachment)
	mux.HandleFunc("PUT /etapi/attachments/{id}/content", f.putAttachmentContent)

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != testToken {
			writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "Not authenticated")
			return
		}
		f.mu.Lock()
		status := f.failStatus
		f.mu.Unlock()
		if status != 0 {
			writeError(w, status, "INTERNAL", "boom")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeETAPI) client() *Client {
	return NewClient(f.srv.URL+"/", testToken, f.srv.Client(), zerolog.Nop())
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "code": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setContent stores content and derives the blob id from it. Callers hold mu
// or run before the server starts.
func (f *fakeETAPI) setContent(id, content string) {
	f.contents[id] = content
	sum := sha256.Sum256([]byte(content))
	f.notes[id].BlobID = hex.EncodeToString(sum[:10])
}

func (f *fakeETAPI) newNote(parentID, title, content string) *etapiNote {
	f.seq++
	n := &etapiNote{
		NoteID:         fmt.Sprintf("n%d", f.seq),
		Title:          title,
		Type:           "text",
		ParentNoteIDs:  []string{parentID},
		UTCDateCreated: "2026-10-17 09:00:00.000Z",
	}
	f.notes[n.NoteID] = n
	f.setContent(n.NoteID, content)
	return n
}

func (f *fakeETAPI) calendarDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.days[date]
	if !ok {
		id = f.newNote("root", date, "").NoteID
		f.days[date] = id
	}
	writeJSON(w, http.StatusOK, f.notes[id])
}

func (f *fakeETAPI) searchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("search")
	f.mu.Lock()
	defer f.mu.Unlock()
	results := []etapiNote{}
	if m := dateNoteQuery.FindStringSubmatch(q); m != nil {
		if id, ok := f.days[m[1]]; ok {
			results = append(results, *f.notes[id])
		}
	} else if m := titleQuery.FindStringSubmatch(q); m != nil {
		for i := 1; i <= f.seq; i++ {
			if n, ok := f.notes[fmt.Sprintf("n%d", i)]; ok && n.Title == m[1] {
				results = append(results, *n)
			}
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (f *fakeETAPI) getNote(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (f *fakeETAPI) getContent(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.contents[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found")
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = io.WriteString(w, content)
}

func (f *fakeETAPI) putContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		writeError(w, http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found")
		return
	}
	f.setContent(id, string(body))
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeETAPI) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[req.ParentNoteID]; !ok {
		writeError(w, http.StatusNotFound, "PARENT_NOTE_NOT_FOUND", "Parent note not found")
		return
	}
	n := f.newNote(req.ParentNoteID, req.Title, req.Content)
	writeJSON(w, http.StatusCreated, map[string]any{"note": n, "branch": map[string]string{"parentNoteId": req.ParentNoteID}})
}

func (f *fakeETAPI) createAttachment(w http.ResponseWriter, r *http.Request) {
	var req createAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[req.OwnerID]; !ok {
		writeError(w, http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found")
		return
	}
	f.seq++
	att := &etapiAttachment{
		AttachmentID: fmt.Sprintf("a%d", f.seq),
		OwnerID:      req.OwnerID,
		Role:         req.Role,
		Mime:         req.Mime,
		Title:        req.Title,
		Position:     req.Position,
	}
	f.attachments[att.AttachmentID] = att
	writeJSON(w, http.StatusCreated, att)
}

func (f *fakeETAPI) putAttachmentContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attachments[id]; !ok {
		writeError(w, http.StatusNotFound, "ATTACHMENT_NOT_FOUND", "Attachment not found")
		return
	}
	f.blobs[id] = body
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeETAPI) fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

func (f *fakeETAPI) content(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contents[id]
}

func (f *fakeETAPI) dayID(date string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.days[date]
}

func (f *fakeETAPI) dayCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.days)
}

func (f *fakeETAPI) attachment(id string) (etapiAttachment, []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	att, ok := f.attachments[id]
	if !ok {
		return etapiAttachment{}, nil, false
	}
	return *att, f.blobs[id], true
}
