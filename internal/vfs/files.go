package vfs

import (
	"strings"

	"github.com/epicenterhq/epicenter-go/internal/schema"
)

// FileType discriminates a file row.
type FileType string

const (
	TypeFile   FileType = "file"
	TypeFolder FileType = "folder"
)

// RootID is the parent id of top-level files. The root itself has no row —
// it is implicit, cannot be deleted or renamed, and stats as a synthetic
// directory.
const RootID = ""

// FileRow is one file's metadata in the flat files table. Location is
// (ParentID, Name); content lives in the pooled content document whose
// guid is ID. TrashedAt of zero means active; nonzero is the soft-delete
// timestamp.
type FileRow struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ParentID  string   `json:"parentId"`
	Type      FileType `json:"type"`
	Size      int64    `json:"size"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	TrashedAt int64    `json:"trashedAt,omitempty"`
}

// Active reports whether the row is live (not soft-deleted).
func (r FileRow) Active() bool { return r.TrashedAt == 0 }

// IsDir reports whether the row is a folder.
func (r FileRow) IsDir() bool { return r.Type == TypeFolder }

// FilesTableName is the conventional name the files table registers under
// on a workspace.
const FilesTableName = "files"

// FilesTable returns the schema definition of the files table.
func FilesTable() schema.TableDefinition[FileRow] {
	return schema.TableDefinition[FileRow]{
		ValueDefinition: schema.ValueDefinition[FileRow]{
			Validate: validateFileRow,
		},
		RowID: func(r FileRow) string { return r.ID },
	}
}

func validateFileRow(r FileRow) []schema.FieldError {
	var errs []schema.FieldError
	if r.ID == "" {
		errs = append(errs, schema.FieldError{Path: "id", Message: "must not be empty"})
	} else if strings.Contains(r.ID, ":") {
		errs = append(errs, schema.FieldError{Path: "id", Message: "must not contain ':'"})
	}
	if !validName(r.Name) {
		errs = append(errs, schema.FieldError{Path: "name", Message: "invalid file name"})
	}
	if r.Type != TypeFile && r.Type != TypeFolder {
		errs = append(errs, schema.FieldError{Path: "type", Message: "must be file or folder"})
	}
	if r.Size < 0 {
		errs = append(errs, schema.FieldError{Path: "size", Message: "must not be negative"})
	}
	return errs
}
