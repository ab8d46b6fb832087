package vfs

import (
	"context"
	"io/fs"
	"sort"
	"time"

	"github.com/epicenterhq/epicenter-go/internal/content"
	"github.com/epicenterhq/epicenter-go/internal/schema"
	"github.com/epicenterhq/epicenter-go/pkg/idgen"
)

// FileInfo is the stat result for a path. Root stats as a synthetic
// directory with an epoch mtime.
type FileInfo struct {
	ID      string
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
}

// DirEntry is one readdirWithFileTypes result.
type DirEntry struct {
	ID   string
	Name string
	Type FileType
}

// IsDir reports whether the entry is a folder.
func (d DirEntry) IsDir() bool { return d.Type == TypeFolder }

// FS is the POSIX-flavored filesystem over a files table and a content
// document pool. Metadata operations are synchronous; content operations
// may suspend on the pool's provider readiness.
type FS struct {
	files *schema.TableHelper[FileRow]
	pool  *content.Pool
	index *Index

	cwd   string
	now   func() int64
	newID func() string
}

// Option configures an FS.
type Option func(*FS)

// WithClockSource overrides the wall clock used for timestamps.
func WithClockSource(now func() int64) Option {
	return func(f *FS) { f.now = now }
}

// WithIDSource overrides file id generation.
func WithIDSource(newID func() string) Option {
	return func(f *FS) { f.newID = newID }
}

// New creates an FS over the files table and pool, with its working
// directory at root.
func New(files *schema.TableHelper[FileRow], pool *content.Pool, opts ...Option) *FS {
	f := &FS{
		files: files,
		pool:  pool,
		index: NewIndex(files),
		cwd:   "/",
		now:   func() int64 { return time.Now().UnixMilli() },
		newID: idgen.New,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Index exposes the filesystem's path index, e.g. for consumers rendering
// trees without stat-ing every path.
func (f *FS) Index() *Index { return f.index }

// Close unsubscribes the index. Content documents are owned by the pool
// and torn down by its owner.
func (f *FS) Close() {
	f.index.Close()
}

// Getwd returns the current working directory.
func (f *FS) Getwd() string { return f.cwd }

// Chdir changes the working directory used to resolve relative paths.
func (f *FS) Chdir(p string) error {
	abs := Resolve(f.cwd, p)
	if abs != "/" {
		r, ok := f.rowAt(abs)
		if !ok {
			return fsErr(ENOENT, abs)
		}
		if !r.IsDir() {
			return fsErr(ENOTDIR, abs)
		}
	}
	f.cwd = abs
	return nil
}

func (f *FS) resolve(p string) string {
	return Resolve(f.cwd, p)
}

func (f *FS) rowAt(abs string) (FileRow, bool) {
	id, ok := f.index.IDForPath(abs)
	if !ok {
		return FileRow{}, false
	}
	return f.index.Row(id)
}

// Exists reports whether a path resolves to the root or an active file.
func (f *FS) Exists(p string) bool {
	abs := f.resolve(p)
	if abs == "/" {
		return true
	}
	_, ok := f.index.IDForPath(abs)
	return ok
}

// Stat returns metadata for a path. Root is synthetic: a directory with
// mode 0755 and an epoch mtime.
func (f *FS) Stat(p string) (FileInfo, error) {
	abs := f.resolve(p)
	if abs == "/" {
		return FileInfo{
			Name:    "/",
			Mode:    fs.ModeDir | 0o755,
			ModTime: time.UnixMilli(0),
			IsDir:   true,
		}, nil
	}
	r, ok := f.rowAt(abs)
	if !ok {
		return FileInfo{}, fsErr(ENOENT, abs)
	}
	info := FileInfo{
		ID:      r.ID,
		Name:    r.Name,
		Size:    r.Size,
		ModTime: time.UnixMilli(r.UpdatedAt),
		IsDir:   r.IsDir(),
	}
	if r.IsDir() {
		info.Mode = fs.ModeDir | 0o755
	} else {
		info.Mode = 0o644
	}
	return info, nil
}

// Lstat is Stat: symlinks are not supported, so there is never a link to
// avoid following.
func (f *FS) Lstat(p string) (FileInfo, error) {
	return f.Stat(p)
}

// Readdir lists a directory's child names, sorted ascending. Two active
// siblings sharing a name (possible after a concurrent merge) are
// disambiguated with a deterministic suffix derived from the file id.
func (f *FS) Readdir(p string) ([]string, error) {
	entries, err := f.ReaddirWithFileTypes(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// ReaddirWithFileTypes lists a directory's children with their types,
// sorted ascending by (disambiguated) name.
func (f *FS) ReaddirWithFileTypes(p string) ([]DirEntry, error) {
	abs := f.resolve(p)
	parentID := RootID
	if abs != "/" {
		r, ok := f.rowAt(abs)
		if !ok {
			return nil, fsErr(ENOENT, abs)
		}
		if !r.IsDir() {
			return nil, fsErr(ENOTDIR, abs)
		}
		parentID = r.ID
	}

	ids := f.index.Children(parentID)
	byName := make(map[string][]FileRow)
	for _, id := range ids {
		if r, ok := f.index.Row(id); ok {
			byName[r.Name] = append(byName[r.Name], r)
		}
	}

	entries := make([]DirEntry, 0, len(ids))
	for name, rows := range byName {
		if len(rows) == 1 {
			entries = append(entries, DirEntry{ID: rows[0].ID, Name: name, Type: rows[0].Type})
			continue
		}
		// Name collision across replicas: keep listings unambiguous by
		// suffixing each entry with a short id-derived discriminator.
		for _, r := range rows {
			entries = append(entries, DirEntry{
				ID:   r.ID,
				Name: name + " (" + idgen.ShortSuffix(r.ID, 6) + ")",
				Type: r.Type,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile returns a file's current content as a string: text verbatim,
// richtext serialized to markdown, binary bytes reinterpreted as UTF-8.
func (f *FS) ReadFile(ctx context.Context, p string) (string, error) {
	doc, _, err := f.openContent(ctx, p)
	if err != nil {
		return "", err
	}
	return doc.ReadText(), nil
}

// ReadFileBuffer returns a file's current content as bytes; text and
// richtext are UTF-8 encoded.
func (f *FS) ReadFileBuffer(ctx context.Context, p string) ([]byte, error) {
	doc, _, err := f.openContent(ctx, p)
	if err != nil {
		return nil, err
	}
	return doc.ReadBuffer(), nil
}

func (f *FS) openContent(ctx context.Context, p string) (*content.Doc, string, error) {
	abs := f.resolve(p)
	if abs == "/" {
		return nil, abs, fsErr(EISDIR, abs)
	}
	r, ok := f.rowAt(abs)
	if !ok {
		return nil, abs, fsErr(ENOENT, abs)
	}
	if r.IsDir() {
		return nil, abs, fsErr(EISDIR, abs)
	}
	doc, err := f.pool.Ensure(ctx, r.ID)
	if err != nil {
		return nil, abs, err
	}
	return doc, abs, nil
}

// WriteFile writes string content to a path, creating the file if needed.
// Writing text onto a file whose current version is text edits the nested
// content in place; any other case appends a new timeline entry.
func (f *FS) WriteFile(ctx context.Context, p, data string) error {
	return f.write(ctx, p, func(doc *content.Doc) {
		doc.EditText(data)
	})
}

// WriteFileBytes writes binary content to a path, creating the file if
// needed. Every binary write appends a new version.
func (f *FS) WriteFileBytes(ctx context.Context, p string, data []byte) error {
	return f.write(ctx, p, func(doc *content.Doc) {
		doc.WriteBinary(data)
	})
}

// AppendFile appends string data: in-place text edit when the current
// version is text; decode-concat into a fresh text entry when binary;
// plain WriteFile when the file does not exist yet.
func (f *FS) AppendFile(ctx context.Context, p, data string) error {
	abs := f.resolve(p)
	if _, ok := f.rowAt(abs); !ok {
		return f.WriteFile(ctx, p, data)
	}
	return f.write(ctx, p, func(doc *content.Doc) {
		cur, ok := doc.Current()
		if !ok {
			doc.EditText(data)
			return
		}
		switch cur.Kind {
		case content.KindText:
			doc.EditText(cur.Text + data)
		case content.KindBinary:
			doc.EditText(string(cur.Data) + data)
		default:
			doc.EditText(doc.ReadText() + data)
		}
	})
}

// write routes a content mutation to the path's document, creating the
// file row first if the path is new, then refreshes size bookkeeping.
func (f *FS) write(ctx context.Context, p string, mutate func(*content.Doc)) error {
	abs := f.resolve(p)
	if abs == "/" {
		return fsErr(EISDIR, abs)
	}

	row, ok := f.rowAt(abs)
	if ok {
		if row.IsDir() {
			return fsErr(EISDIR, abs)
		}
	} else {
		created, err := f.createFileRow(abs)
		if err != nil {
			return err
		}
		row = created
	}

	doc, err := f.pool.Ensure(ctx, row.ID)
	if err != nil {
		return err
	}
	mutate(doc)
	return f.touchSize(row.ID, doc)
}

// createFileRow validates the name, checks sibling uniqueness among active
// rows, and inserts the metadata row for a new file at abs.
func (f *FS) createFileRow(abs string) (FileRow, error) {
	dir, name := SplitPath(abs)
	if !validName(name) {
		return FileRow{}, fsErr(EINVAL, abs)
	}

	parentID := RootID
	if dir != "/" {
		parent, ok := f.rowAt(dir)
		if !ok {
			return FileRow{}, fsErr(ENOENT, dir)
		}
		if !parent.IsDir() {
			return FileRow{}, fsErr(ENOTDIR, dir)
		}
		parentID = parent.ID
	}
	if _, exists := f.index.ChildByName(parentID, name); exists {
		return FileRow{}, fsErr(EEXIST, abs)
	}

	now := f.now()
	row := FileRow{
		ID:        f.newID(),
		Name:      name,
		ParentID:  parentID,
		Type:      TypeFile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.files.Set(row); err != nil {
		return FileRow{}, err
	}
	return row, nil
}

// touchSize refreshes the row's size to the byte length of the current
// version and bumps updatedAt — one metadata write that propagates the
// change to every observer without them loading the content doc.
func (f *FS) touchSize(id string, doc *content.Doc) error {
	r, ok := f.index.Row(id)
	if !ok {
		return nil
	}
	r.Size = int64(len(doc.ReadBuffer()))
	r.UpdatedAt = f.now()
	return f.files.Set(r)
}

// MkdirOptions configures Mkdir.
type MkdirOptions struct {
	Recursive bool
}

// Mkdir creates a directory. Without Recursive it fails ENOENT on a
// missing parent and EEXIST on anything already at the path; with
// Recursive it creates each missing ancestor, tolerates existing folders,
// and still fails EEXIST when a file occupies a component.
func (f *FS) Mkdir(p string, opts MkdirOptions) error {
	abs := f.resolve(p)
	if abs == "/" {
		if opts.Recursive {
			return nil
		}
		return fsErr(EEXIST, abs)
	}

	if !opts.Recursive {
		if _, ok := f.rowAt(abs); ok {
			return fsErr(EEXIST, abs)
		}
		return f.mkdirOne(abs)
	}

	// Walk down from root, creating what is missing.
	dir, _ := SplitPath(abs)
	if dir != "/" {
		if err := f.Mkdir(dir, opts); err != nil {
			return err
		}
	}
	if existing, ok := f.rowAt(abs); ok {
		if existing.IsDir() {
			return nil
		}
		return fsErr(EEXIST, abs)
	}
	return f.mkdirOne(abs)
}

func (f *FS) mkdirOne(abs string) error {
	dir, name := SplitPath(abs)
	if !validName(name) {
		return fsErr(EINVAL, abs)
	}
	parentID := RootID
	if dir != "/" {
		parent, ok := f.rowAt(dir)
		if !ok {
			return fsErr(ENOENT, dir)
		}
		if !parent.IsDir() {
			return fsErr(ENOTDIR, dir)
		}
		parentID = parent.ID
	}
	if _, exists := f.index.ChildByName(parentID, name); exists {
		return fsErr(EEXIST, abs)
	}

	now := f.now()
	return f.files.Set(FileRow{
		ID:        f.newID(),
		Name:      name,
		ParentID:  parentID,
		Type:      TypeFolder,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// RmOptions configures Rm.
type RmOptions struct {
	Recursive bool
	Force     bool
}

// Rm soft-deletes a path: the row (and, recursively, its subtree) gets a
// trashedAt stamp in one batch, and each file's content document is
// destroyed in the pool. Force suppresses ENOENT; a non-empty folder
// without Recursive fails ENOTEMPTY; the root cannot be removed.
func (f *FS) Rm(p string, opts RmOptions) error {
	abs := f.resolve(p)
	if abs == "/" {
		return fsErr(EINVAL, abs)
	}
	row, ok := f.rowAt(abs)
	if !ok {
		if opts.Force {
			return nil
		}
		return fsErr(ENOENT, abs)
	}

	if row.IsDir() && !opts.Recursive && len(f.index.Children(row.ID)) > 0 {
		return fsErr(ENOTEMPTY, abs)
	}

	victims := f.collectSubtree(row)
	now := f.now()
	trashed := make([]FileRow, len(victims))
	for i, v := range victims {
		v.TrashedAt = now
		v.UpdatedAt = now
		trashed[i] = v
	}
	if err := f.files.Set(trashed...); err != nil {
		return err
	}

	var firstErr error
	for _, v := range victims {
		if v.Type != TypeFile {
			continue
		}
		if err := f.pool.Destroy(v.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// collectSubtree gathers row and every active descendant, depth-first.
func (f *FS) collectSubtree(row FileRow) []FileRow {
	out := []FileRow{row}
	if !row.IsDir() {
		return out
	}
	for _, id := range f.index.Children(row.ID) {
		if child, ok := f.index.Row(id); ok {
			out = append(out, f.collectSubtree(child)...)
		}
	}
	return out
}

// Mv renames and/or reparents a file — metadata only, content untouched.
// Fails EEXIST when an active sibling (other than the moved node itself)
// already holds the destination name, and EINVAL when a folder would move
// into its own subtree.
func (f *FS) Mv(src, dst string) error {
	absSrc := f.resolve(src)
	absDst := f.resolve(dst)
	if absSrc == "/" || absDst == "/" {
		return fsErr(EINVAL, absSrc)
	}
	row, ok := f.rowAt(absSrc)
	if !ok {
		return fsErr(ENOENT, absSrc)
	}
	if absDst == absSrc {
		return nil
	}
	if row.IsDir() && isWithin(absDst, absSrc) {
		return fsErr(EINVAL, absDst)
	}

	dir, name := SplitPath(absDst)
	if !validName(name) {
		return fsErr(EINVAL, absDst)
	}
	parentID := RootID
	if dir != "/" {
		parent, ok := f.rowAt(dir)
		if !ok {
			return fsErr(ENOENT, dir)
		}
		if !parent.IsDir() {
			return fsErr(ENOTDIR, dir)
		}
		parentID = parent.ID
	}
	if sibling, exists := f.index.ChildByName(parentID, name); exists && sibling.ID != row.ID {
		return fsErr(EEXIST, absDst)
	}

	row.Name = name
	row.ParentID = parentID
	row.UpdatedAt = f.now()
	return f.files.Set(row)
}

// CpOptions configures Cp.
type CpOptions struct {
	Recursive bool
}

// Cp copies a file's current version into a new (or overwritten) file at
// dst via the pool, or — with Recursive — materializes a folder subtree.
// Copying a folder onto or into itself fails EINVAL; a folder without
// Recursive fails EISDIR.
func (f *FS) Cp(ctx context.Context, src, dst string, opts CpOptions) error {
	absSrc := f.resolve(src)
	absDst := f.resolve(dst)

	srcRow, ok := f.rowAt(absSrc)
	if !ok {
		if absSrc == "/" {
			srcRow = FileRow{ID: RootID, Type: TypeFolder}
		} else {
			return fsErr(ENOENT, absSrc)
		}
	}

	if srcRow.IsDir() {
		if !opts.Recursive {
			return fsErr(EISDIR, absSrc)
		}
		if absDst == absSrc || isWithin(absDst, absSrc) {
			return fsErr(EINVAL, absDst)
		}
		return f.cpDir(ctx, absSrc, absDst, opts)
	}
	return f.cpFile(ctx, srcRow, absDst)
}

func (f *FS) cpDir(ctx context.Context, absSrc, absDst string, opts CpOptions) error {
	if existing, ok := f.rowAt(absDst); ok {
		if !existing.IsDir() {
			return fsErr(ENOTDIR, absDst)
		}
	} else if absDst != "/" {
		if err := f.mkdirOne(absDst); err != nil {
			return err
		}
	}

	entries, err := f.ReaddirWithFileTypes(absSrc)
	if err != nil {
		return err
	}
	for _, e := range entries {
		// Disambiguated listing names don't resolve as paths; copy by the
		// row's real name.
		r, ok := f.index.Row(e.ID)
		if !ok {
			continue
		}
		if err := f.Cp(ctx, joinPath(absSrc, r.Name), joinPath(absDst, r.Name), opts); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) cpFile(ctx context.Context, srcRow FileRow, absDst string) error {
	if existing, ok := f.rowAt(absDst); ok && existing.IsDir() {
		return fsErr(EISDIR, absDst)
	}

	srcDoc, err := f.pool.Ensure(ctx, srcRow.ID)
	if err != nil {
		return err
	}
	cur, hasContent := srcDoc.Current()

	return f.write(ctx, absDst, func(doc *content.Doc) {
		if !hasContent {
			doc.EditText("")
			return
		}
		switch cur.Kind {
		case content.KindText:
			doc.EditText(cur.Text)
		case content.KindRichText:
			doc.EditRichText(cur.Body, cur.Frontmatter)
		case content.KindBinary:
			doc.WriteBinary(cur.Data)
		}
	})
}

// Chmod is accepted and ignored: the filesystem carries no permission
// bits. Fails ENOENT so callers still get path validation.
func (f *FS) Chmod(p string, _ fs.FileMode) error {
	abs := f.resolve(p)
	if abs == "/" {
		return nil
	}
	if _, ok := f.rowAt(abs); !ok {
		return fsErr(ENOENT, abs)
	}
	return nil
}

// Utimes updates only the row's updatedAt timestamp.
func (f *FS) Utimes(p string, _, mtime time.Time) error {
	abs := f.resolve(p)
	if abs == "/" {
		return fsErr(EINVAL, abs)
	}
	r, ok := f.rowAt(abs)
	if !ok {
		return fsErr(ENOENT, abs)
	}
	r.UpdatedAt = mtime.UnixMilli()
	return f.files.Set(r)
}

// Symlink is unsupported.
func (f *FS) Symlink(_, linkpath string) error {
	return fsErr(ENOSYS, f.resolve(linkpath))
}

// Link is unsupported.
func (f *FS) Link(_, linkpath string) error {
	return fsErr(ENOSYS, f.resolve(linkpath))
}

// Readlink is unsupported.
func (f *FS) Readlink(p string) (string, error) {
	return "", fsErr(ENOSYS, f.resolve(p))
}

// isWithin reports whether p is strictly inside dir.
func isWithin(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	return len(p) > len(dir) && p[:len(dir)] == dir && p[len(dir)] == '/'
}
