package checklist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"golang.org/x/net/html"
)

const (
	listClass       = "checklist"
	attrID          = "data-id"
	attrDone        = "data-done"
	attrNextID      = "data-next-id"
	attrCarriedFrom = "data-carried-from"
)

// Extra is the note content surrounding the checklist list.
type Extra struct {
	Before string
	After  string

	// Present is false when the note had no checklist list; Before then
	// holds the whole content.
	Present bool
}

// Document is a decoded day note: the checklist plus everything else.
type Document struct {
	Checklist *domain.Checklist
	Extra     Extra
}

// Decode parses raw day note content. It fails with
// domain.ErrMalformedContent when a checklist list exists but cannot be
// read; content without one yields an empty checklist.
func Decode(raw string) (*Document, error) {
	d := &decoder{z: html.NewTokenizer(strings.NewReader(raw))}
	doc, err := d.run(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedContent, err)
	}
	return doc, nil
}

// Encode renders the checklist back into note content, surrounded by extra.
// An empty checklist encoded against a note that never had a list leaves
// the content untouched.
func Encode(c *domain.Checklist, extra Extra) string {
	if !extra.Present && c.Len() == 0 && len(c.CarriedFrom) == 0 {
		return extra.Before
	}
	var b strings.Builder
	b.WriteString(extra.Before)
	writeList(&b, c)
	b.WriteString(extra.After)
	return b.String()
}

func writeList(b *strings.Builder, c *domain.Checklist) {
	next := c.NextID
	if next < 1 {
		next = 1
	}
	fmt.Fprintf(b, `<ul class="%s" %s="%d"`, listClass, attrNextID, next)
	if len(c.CarriedFrom) > 0 {
		dates := make([]string, len(c.CarriedFrom))
		for i, d := range c.CarriedFrom {
			dates[i] = string(d)
		}
		fmt.Fprintf(b, ` %s="%s"`, attrCarriedFrom, strings.Join(dates, ","))
	}
	b.WriteString(">\n")
	for _, it := range c.Items {
		fmt.Fprintf(b, `<li %s="%d" %s="%t">%s</li>`, attrID, it.ID, attrDone, it.Done, html.EscapeString(it.Text))
		b.WriteByte('\n')
	}
	b.WriteString("</ul>")
}

type decoder struct {
	z      *html.Tokenizer
	offset int
}

// next advances the tokenizer and returns the token with its byte range.
func (d *decoder) next() (html.TokenType, html.Token, int, int) {
	tt := d.z.Next()
	start := d.offset
	d.offset += len(d.z.Raw())
	if tt == html.ErrorToken {
		return tt, html.Token{}, start, d.offset
	}
	return tt, d.z.Token(), start, d.offset
}

func (d *decoder) run(raw string) (*Document, error) {
	var (
		doc       *Document
		listStart int
	)
	for {
		tt, tok, start, end := d.next()
		switch tt {
		case html.ErrorToken:
			if !errors.Is(d.z.Err(), io.EOF) {
				return nil, d.z.Err()
			}
			if doc == nil {
				return &Document{
					Checklist: domain.NewChecklist(),
					Extra:     Extra{Before: raw},
				}, nil
			}
			return doc, nil
		case html.StartTagToken:
			if !isChecklistList(tok) {
				continue
			}
			if doc != nil {
				return nil, errors.New("more than one checklist list")
			}
			listStart = start
			c, err := d.readList(tok)
			if err != nil {
				return nil, err
			}
			doc = &Document{
				Checklist: c,
				Extra: Extra{
					Before:  raw[:listStart],
					After:   raw[d.offset:],
					Present: true,
				},
			}
		case html.SelfClosingTagToken:
			if isChecklistList(tok) {
				return nil, fmt.Errorf("self-closing checklist list at byte %d", end)
			}
		}
	}
}

func (d *decoder) readList(open html.Token) (*domain.Checklist, error) {
	c := domain.NewChecklist()
	declaredNext := 0
	if v, ok := attr(open, attrNextID); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s %q", attrNextID, v)
		}
		declaredNext = n
	}
	if v, ok := attr(open, attrCarriedFrom); ok && strings.TrimSpace(v) != "" {
		for _, part := range strings.Split(v, ",") {
			date, err := domain.ParseDate(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", attrCarriedFrom, err)
			}
			if !slices.Contains(c.CarriedFrom, date) {
				c.CarriedFrom = append(c.CarriedFrom, date)
			}
		}
		slices.Sort(c.CarriedFrom)
	}

	seen := make(map[int]struct{})
	maxID := 0
	for {
		tt, tok, start, _ := d.next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(d.z.Err(), io.EOF) {
				return nil, errors.New("unterminated checklist list")
			}
			return nil, d.z.Err()
		case html.TextToken:
			if strings.TrimSpace(tok.Data) != "" {
				return nil, fmt.Errorf("stray text in checklist at byte %d", start)
			}
		case html.CommentToken:
		case html.StartTagToken:
			if tok.Data != "li" {
				return nil, fmt.Errorf("unexpected <%s> in checklist at byte %d", tok.Data, start)
			}
			item, err := d.readItem(tok)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[item.ID]; dup {
				return nil, fmt.Errorf("duplicate item id %d", item.ID)
			}
			seen[item.ID] = struct{}{}
			maxID = max(maxID, item.ID)
			item.Position = len(c.Items)
			c.Items = append(c.Items, item)
		case html.EndTagToken:
			if tok.Data != "ul" {
				return nil, fmt.Errorf("unexpected </%s> in checklist at byte %d", tok.Data, start)
			}
			c.NextID = max(declaredNext, maxID+1)
			return c, nil
		default:
			return nil, fmt.Errorf("unexpected token in checklist at byte %d", start)
		}
	}
}

func (d *decoder) readItem(open html.Token) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	idStr, ok := attr(open, attrID)
	if !ok {
		return item, fmt.Errorf("checklist item without %s", attrID)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id < 1 {
		return item, fmt.Errorf("invalid %s %q", attrID, idStr)
	}
	doneStr, ok := attr(open, attrDone)
	if !ok {
		return item, fmt.Errorf("checklist item %d without %s", id, attrDone)
	}
	done, err := strconv.ParseBool(doneStr)
	if err != nil {
		return item, fmt.Errorf("invalid %s %q on item %d", attrDone, doneStr, id)
	}
	item.ID = id
	item.Done = done

	var text bytes.Buffer
	for {
		tt, tok, start, _ := d.next()
		switch tt {
		case html.TextToken:
			text.WriteString(tok.Data)
		case html.EndTagToken:
			if tok.Data != "li" {
				return item, fmt.Errorf("unexpected </%s> in item %d at byte %d", tok.Data, id, start)
			}
			if strings.TrimSpace(text.String()) == "" {
				return item, fmt.Errorf("item %d has empty text", id)
			}
			item.Text = text.String()
			return item, nil
		case html.ErrorToken:
			return item, fmt.Errorf("unterminated item %d", id)
		default:
			return item, fmt.Errorf("unexpected markup in item %d at byte %d", id, start)
		}
	}
}

func isChecklistList(tok html.Token) bool {
	if tok.Data != "ul" {
		return false
	}
	class, ok := attr(tok, "class")
	if !ok {
		return false
	}
	return slices.Contains(strings.Fields(class), listClass)
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
