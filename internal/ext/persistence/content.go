package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/epicenterhq/epicenter-go/internal/content"
)

// contentFile is the on-disk form of a content document's timeline.
type contentFile struct {
	FileID  string                 `json:"fileId"`
	Entries []content.VersionEntry `json:"entries"`
}

// ContentProvider returns a pool provider factory that loads a file's
// timeline from disk on materialization and writes it back on destroy.
// Replay goes through the document's own write operations, which reproduce
// the saved timeline exactly: the timeline never holds consecutive
// same-mode text or richtext entries, and binary writes always append.
func (p *Persistence) ContentProvider() content.ProviderFactory {
	return func(doc *content.Doc) (content.Provider, error) {
		path := p.contentPath(doc.FileID)

		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return content.Provider{}, fmt.Errorf("persistence: read content %s: %w", doc.FileID, err)
		default:
			var cf contentFile
			if uerr := json.Unmarshal(data, &cf); uerr != nil {
				return content.Provider{}, fmt.Errorf("persistence: decode content %s: %w", doc.FileID, uerr)
			}
			for _, e := range cf.Entries {
				switch e.Kind {
				case content.KindText:
					doc.EditText(e.Text)
				case content.KindRichText:
					doc.EditRichText(e.Body, e.Frontmatter)
				case content.KindBinary:
					doc.WriteBinary(e.Data)
				}
			}
		}

		return content.Provider{
			Destroy: func() error {
				return p.saveContent(doc)
			},
		}, nil
	}
}

func (p *Persistence) contentPath(fileID string) string {
	return filepath.Join(p.cfg.Dir, "content", fileID+".json")
}

func (p *Persistence) saveContent(doc *content.Doc) error {
	cf := contentFile{FileID: doc.FileID, Entries: doc.Entries()}
	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("persistence: encode content %s: %w", doc.FileID, err)
	}
	dir := filepath.Dir(p.contentPath(doc.FileID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp := p.contentPath(doc.FileID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, p.contentPath(doc.FileID))
}
