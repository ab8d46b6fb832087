package content

import (
	"fmt"
	"sort"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
)

// Kind discriminates a VersionEntry's content.
type Kind int

const (
	KindText Kind = iota
	KindRichText
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindRichText:
		return "richtext"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// VersionEntry is one entry in a content document's timeline.
type VersionEntry struct {
	Kind Kind

	// Text holds the body for KindText.
	Text string

	// Body and Frontmatter hold the markdown-backed body and parsed
	// frontmatter for KindRichText.
	Body        string
	Frontmatter map[string]any

	// Data holds the opaque payload for KindBinary.
	Data []byte
}

// Doc is a per-file content document: a gc-off CRDT document whose sole
// shared type is an append-only timeline array. The current version is
// always the last live entry.
type Doc struct {
	FileID   string
	document *crdt.Document
	timeline *crdt.Array[VersionEntry]
}

// NewDoc creates an empty content document for fileID. gc-off preserves the
// full version history — there is no tombstone collection to lose mode-
// switch predecessors to.
func NewDoc(fileID string, opts ...crdt.Option) *Doc {
	doc := crdt.NewDocument(fileID, false, opts...)
	return &Doc{
		FileID:   fileID,
		document: doc,
		timeline: crdt.NewArray[VersionEntry](doc),
	}
}

// Document returns the backing CRDT document, e.g. for a persistence
// extension to serialize.
func (d *Doc) Document() *crdt.Document { return d.document }

// Len returns the number of entries ever pushed (including superseded
// mode-switch predecessors — nothing is deleted by a mode switch).
func (d *Doc) Len() int { return d.timeline.Len() }

// currentEntry returns the last live entry's index-local view. Must be
// called with no concurrent mutation in flight (single-writer document).
func (d *Doc) currentEntry() (crdt.IndexedEntry[VersionEntry], bool) {
	entries := d.timeline.Entries()
	if len(entries) == 0 {
		return crdt.IndexedEntry[VersionEntry]{}, false
	}
	return entries[len(entries)-1], true
}

// Current returns the timeline's last entry, the document's current
// version. Returns false for an empty timeline.
func (d *Doc) Current() (VersionEntry, bool) {
	e, ok := d.currentEntry()
	if !ok {
		return VersionEntry{}, false
	}
	return e.Value, true
}

// Entries returns every version ever pushed, in timeline order, including
// ones superseded by a later mode switch.
func (d *Doc) Entries() []VersionEntry {
	entries := d.timeline.Entries()
	out := make([]VersionEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// EditText sets the text content. If the current version is already text,
// it is edited in place (same EntryID, same index — no new timeline entry,
// preserving the "preserves character-level identity" intent without
// creating a tombstone). Any other current state (binary, richtext, or
// empty) appends a fresh text entry — a mode switch.
func (d *Doc) EditText(s string) {
	cur, ok := d.currentEntry()
	if ok && cur.Value.Kind == KindText {
		d.timeline.UpdateAt(cur.ID, VersionEntry{Kind: KindText, Text: s})
		return
	}
	d.timeline.Push(VersionEntry{Kind: KindText, Text: s})
}

// EditRichText sets the richtext body and frontmatter, editing in place on
// a same-mode write and appending a fresh entry on a mode switch, the same
// rule as EditText.
func (d *Doc) EditRichText(body string, frontmatter map[string]any) {
	cur, ok := d.currentEntry()
	if ok && cur.Value.Kind == KindRichText {
		d.timeline.UpdateAt(cur.ID, VersionEntry{Kind: KindRichText, Body: body, Frontmatter: frontmatter})
		return
	}
	d.timeline.Push(VersionEntry{Kind: KindRichText, Body: body, Frontmatter: frontmatter})
}

// WriteBinary always appends a fresh binary entry — every binary write is a
// new version, same-mode or not.
func (d *Doc) WriteBinary(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.timeline.Push(VersionEntry{Kind: KindBinary, Data: cp})
}

// ReadText renders the current version as a string: the text body
// verbatim, the richtext body with a YAML-ish frontmatter block prefixed,
// or the binary payload's bytes reinterpreted as UTF-8.
func (d *Doc) ReadText() string {
	cur, ok := d.Current()
	if !ok {
		return ""
	}
	switch cur.Kind {
	case KindText:
		return cur.Text
	case KindRichText:
		return renderMarkdown(cur.Body, cur.Frontmatter)
	case KindBinary:
		return string(cur.Data)
	default:
		return ""
	}
}

// ReadBuffer renders the current version as bytes, UTF-8 encoding text and
// richtext content.
func (d *Doc) ReadBuffer() []byte {
	cur, ok := d.Current()
	if !ok {
		return nil
	}
	switch cur.Kind {
	case KindText:
		return []byte(cur.Text)
	case KindRichText:
		return []byte(renderMarkdown(cur.Body, cur.Frontmatter))
	case KindBinary:
		out := make([]byte, len(cur.Data))
		copy(out, cur.Data)
		return out
	default:
		return nil
	}
}

// renderMarkdown serializes a richtext body with an optional frontmatter
// block prefixed in key order, so two renders of the same version are
// byte-identical.
func renderMarkdown(body string, frontmatter map[string]any) string {
	if len(frontmatter) == 0 {
		return body
	}
	keys := make([]string, 0, len(frontmatter))
	for k := range frontmatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := "---\n"
	for _, k := range keys {
		out += fmt.Sprintf("%s: %v\n", k, frontmatter[k])
	}
	out += "---\n" + body
	return out
}
