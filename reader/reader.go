package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/pages"
	"github.com/tsawler/pdfshrink/resolver"
)

// ErrEncrypted is returned for files with an /Encrypt dictionary.
var ErrEncrypted = errors.New("encrypted PDF files are not supported")

var versionPattern = regexp.MustCompile(`^%PDF-(\d+)\.(\d+)`)

// PDFVersion represents a PDF version
type PDFVersion struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v PDFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Reader represents a PDF file reader
type Reader struct {
	src        io.ReaderAt
	size       int64
	closer     io.Closer
	xrefTable  *core.XRefTable
	trailer    core.Dict
	version    PDFVersion
	objCache   map[int]core.Object
	objStreams map[int]*core.ObjectStream
	loading    map[int]bool
	resolver   *resolver.Resolver
	pageTree   *pages.PageTree
}

// Ensure Reader implements pages.ObjectResolver
var _ pages.ObjectResolver = (*Reader)(nil)

// NewReader reads the header and cross-reference data of the size bytes
// available from src.
func NewReader(src io.ReaderAt, size int64) (*Reader, error) {
	r := &Reader{
		src:        src,
		size:       size,
		objCache:   make(map[int]core.Object),
		objStreams: make(map[int]*core.ObjectStream),
		loading:    make(map[int]bool),
	}
	r.resolver = resolver.NewResolver(r)

	version, err := r.parseHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	r.version = version

	xrefTable, err := core.NewXRefParser(io.NewSectionReader(src, 0, size)).ParseAllXRefs()
	if err != nil {
		return nil, fmt.Errorf("failed to load xref: %w", err)
	}
	r.xrefTable = xrefTable
	r.trailer = xrefTable.Trailer

	if r.trailer.Has("Encrypt") {
		return nil, ErrEncrypted
	}
	return r, nil
}

// Open opens a PDF file and returns a Reader
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	r, err := NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// Close closes the underlying file when the Reader opened it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// parseHeader reads "%PDF-x.y" from the first bytes of the file.
func (r *Reader) parseHeader() (PDFVersion, error) {
	header := make([]byte, 16)
	n, err := r.src.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return PDFVersion{}, fmt.Errorf("failed to read header: %w", err)
	}
	m := versionPattern.FindSubmatch(header[:n])
	if m == nil {
		return PDFVersion{}, fmt.Errorf("invalid PDF header: %q", bytes.TrimRight(header[:n], "\x00"))
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	return PDFVersion{Major: major, Minor: minor}, nil
}

// Version returns the PDF version
func (r *Reader) Version() PDFVersion {
	return r.version
}

// Trailer returns the trailer dictionary of the newest section.
func (r *Reader) Trailer() core.Dict {
	return r.trailer
}

// XRefTable returns the merged cross-reference table.
func (r *Reader) XRefTable() *core.XRefTable {
	return r.xrefTable
}

// FileSize returns the size of the PDF file in bytes
func (r *Reader) FileSize() int64 {
	return r.size
}

// Source returns a reader over the whole file.
func (r *Reader) Source() *io.SectionReader {
	return io.NewSectionReader(r.src, 0, r.size)
}

// GetObject loads an object by its number. Loaded objects are cached.
func (r *Reader) GetObject(objNum int) (core.Object, error) {
	if obj, ok := r.objCache[objNum]; ok {
		return obj, nil
	}

	entry, ok := r.xrefTable.Get(objNum)
	if !ok || !entry.InUse {
		// A reference to a missing or free object is the null object.
		return core.Null{}, nil
	}
	if r.loading[objNum] {
		return nil, fmt.Errorf("object %d refers to itself while loading", objNum)
	}
	r.loading[objNum] = true
	defer delete(r.loading, objNum)

	var (
		obj core.Object
		err error
	)
	if entry.Compressed {
		obj, err = r.compressedObject(objNum, entry)
	} else {
		obj, err = r.objectAt(objNum, entry.Offset)
	}
	if err != nil {
		return nil, err
	}

	r.objCache[objNum] = obj
	return obj, nil
}

func (r *Reader) objectAt(objNum int, offset int64) (core.Object, error) {
	if offset < 0 || offset >= r.size {
		return nil, fmt.Errorf("object %d offset %d outside file", objNum, offset)
	}
	parser := core.NewParser(io.NewSectionReader(r.src, offset, r.size-offset))
	parser.SetReferenceResolver(r)
	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", objNum, err)
	}
	if indObj.Ref.Number != objNum {
		return nil, fmt.Errorf("object number mismatch: expected %d, got %d", objNum, indObj.Ref.Number)
	}
	return indObj.Object, nil
}

func (r *Reader) compressedObject(objNum int, entry *core.XRefEntry) (core.Object, error) {
	objStm, ok := r.objStreams[entry.StreamNumber]
	if !ok {
		container, err := r.GetObject(entry.StreamNumber)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.StreamNumber, err)
		}
		stream, ok := container.(*core.Stream)
		if !ok {
			return nil, fmt.Errorf("object stream %d is %T", entry.StreamNumber, container)
		}
		if objStm, err = core.NewObjectStream(stream); err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.StreamNumber, err)
		}
		r.objStreams[entry.StreamNumber] = objStm
	}
	obj, err := objStm.GetObjectByNumber(objNum)
	if err != nil {
		return nil, fmt.Errorf("object %d in stream %d: %w", objNum, entry.StreamNumber, err)
	}
	return obj, nil
}

// ResolveReference resolves an indirect reference
func (r *Reader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return r.GetObject(ref.Number)
}

// Resolve follows obj while it is a reference.
func (r *Reader) Resolve(obj core.Object) (core.Object, error) {
	return r.resolver.Resolve(obj)
}

// ResolveDeep recursively resolves all indirect references in an object
func (r *Reader) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.resolver.ResolveDeep(obj)
}

// ResolveDict resolves obj to a dictionary; absent objects give nil.
func (r *Reader) ResolveDict(obj core.Object) (core.Dict, error) {
	return r.resolver.ResolveDict(obj)
}

// GetCatalog returns the document catalog (root object)
func (r *Reader) GetCatalog() (core.Dict, error) {
	rootRef := r.trailer.Get("Root")
	if rootRef == nil {
		return nil, fmt.Errorf("trailer missing /Root entry")
	}
	catalog, err := r.ResolveDict(rootRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is missing")
	}
	return catalog, nil
}

// NumObjects returns the /Size of the newest trailer.
func (r *Reader) NumObjects() int {
	size, _ := r.trailer.GetInt("Size")
	return int(size)
}

// ClearCache clears the object cache
// Useful for freeing memory when processing large PDFs
func (r *Reader) ClearCache() {
	r.objCache = make(map[int]core.Object)
	r.objStreams = make(map[int]*core.ObjectStream)
}

// CacheSize returns the number of cached objects
func (r *Reader) CacheSize() int {
	return len(r.objCache)
}

// Pages returns every page in document order.
func (r *Reader) Pages() ([]*pages.Page, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree.Pages()
}

// PageCount returns the number of pages in the PDF
func (r *Reader) PageCount() (int, error) {
	if err := r.ensurePageTree(); err != nil {
		return 0, err
	}
	return r.pageTree.Count()
}

// GetPage returns the page at the given index (0-based)
func (r *Reader) GetPage(index int) (*pages.Page, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree.GetPage(index)
}

// ensurePageTree loads the page tree if not already loaded
func (r *Reader) ensurePageTree() error {
	if r.pageTree != nil {
		return nil
	}
	catalog, err := r.GetCatalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	pagesDict, err := pages.NewCatalog(catalog, r).Pages()
	if err != nil {
		return err
	}
	r.pageTree = pages.NewPageTree(pagesDict, r)
	return nil
}
