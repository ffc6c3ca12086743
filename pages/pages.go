package pages

import (
	"fmt"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/model"
)

// ObjectResolver resolves indirect references.
type ObjectResolver interface {
	Resolve(obj core.Object) (core.Object, error)
}

// inheritable lists the page attributes a /Pages node passes to its kids.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxTreeDepth bounds /Kids nesting.
const maxTreeDepth = 256

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver ObjectResolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver ObjectResolver) *Catalog {
	return &Catalog{
		dict:     dict,
		resolver: resolver,
	}
}

// Pages returns the page tree root
func (c *Catalog) Pages() (core.Dict, error) {
	pagesRef := c.dict.Get("Pages")
	if pagesRef == nil {
		return nil, fmt.Errorf("catalog missing /Pages entry")
	}

	pagesObj, err := c.resolver.Resolve(pagesRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}

	pagesDict, ok := pagesObj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid /Pages type: %T", pagesObj)
	}

	return pagesDict, nil
}

// PageTree represents the PDF page tree
type PageTree struct {
	root     core.Dict
	resolver ObjectResolver
	pages    []*Page // Cached flattened page list
}

// NewPageTree creates a new page tree from the root pages dictionary
func NewPageTree(root core.Dict, resolver ObjectResolver) *PageTree {
	return &PageTree{
		root:     root,
		resolver: resolver,
	}
}

// Count returns the number of leaf pages found in the tree. The /Count
// entry of the root is not trusted.
func (t *PageTree) Count() (int, error) {
	pages, err := t.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(index int) (*Page, error) {
	pages, err := t.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(pages))
	}
	return pages[index], nil
}

// Pages returns all pages in document order.
func (t *PageTree) Pages() ([]*Page, error) {
	if t.pages == nil {
		if err := t.loadPages(); err != nil {
			return nil, err
		}
	}
	return t.pages, nil
}

func (t *PageTree) loadPages() error {
	pages := make([]*Page, 0)
	visiting := make(map[int]bool)
	if err := t.traversePageNode(t.root, core.IndirectRef{}, core.Dict{}, visiting, 0, &pages); err != nil {
		return fmt.Errorf("failed to traverse page tree: %w", err)
	}
	t.pages = pages
	return nil
}

// traversePageNode visits node, whose inherited attributes are in inherited.
func (t *PageTree) traversePageNode(node core.Dict, ref core.IndirectRef, inherited core.Dict, visiting map[int]bool, depth int, out *[]*Page) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("page tree deeper than %d", maxTreeDepth)
	}

	// Leaves sometimes omit /Type; a node without /Kids is a page.
	typeName, _ := node.GetName("Type")
	if typeName == "" {
		if node.Has("Kids") {
			typeName = "Pages"
		} else {
			typeName = "Page"
		}
	}

	switch string(typeName) {
	case "Pages":
		attrs := inherited.Clone()
		for _, key := range inheritable {
			if v := node.Get(key); v != nil {
				attrs[key] = v
			}
		}

		kidsResolved, err := t.resolver.Resolve(node.Get("Kids"))
		if err != nil {
			return fmt.Errorf("failed to resolve /Kids: %w", err)
		}
		kids, ok := kidsResolved.(core.Array)
		if !ok {
			return fmt.Errorf("invalid /Kids type: %T", kidsResolved)
		}

		for i, kidObj := range kids {
			kidRef, isRef := kidObj.(core.IndirectRef)
			if isRef {
				if visiting[kidRef.Number] {
					return fmt.Errorf("page tree cycle at object %d", kidRef.Number)
				}
				visiting[kidRef.Number] = true
			}
			kidResolved, err := t.resolver.Resolve(kidObj)
			if err != nil {
				return fmt.Errorf("failed to resolve kid %d: %w", i, err)
			}
			kidDict, ok := kidResolved.(core.Dict)
			if !ok {
				return fmt.Errorf("invalid kid type: %T", kidResolved)
			}
			if err := t.traversePageNode(kidDict, kidRef, attrs, visiting, depth+1, out); err != nil {
				return err
			}
			if isRef {
				delete(visiting, kidRef.Number)
			}
		}

	case "Page":
		*out = append(*out, NewPage(node, ref, inherited, len(*out), t.resolver))

	default:
		return fmt.Errorf("unexpected page node type: %s", typeName)
	}

	return nil
}

// Page represents a single PDF page
type Page struct {
	dict      core.Dict
	ref       core.IndirectRef
	inherited core.Dict
	index     int
	resolver  ObjectResolver
}

// NewPage creates a page from its dictionary, its own reference (zero if
// the page is a direct object) and the attributes its ancestors define.
func NewPage(dict core.Dict, ref core.IndirectRef, inherited core.Dict, index int, resolver ObjectResolver) *Page {
	return &Page{
		dict:      dict,
		ref:       ref,
		inherited: inherited,
		index:     index,
		resolver:  resolver,
	}
}

// Dict returns the page dictionary.
func (p *Page) Dict() core.Dict { return p.dict }

// Ref returns the page object's reference.
func (p *Page) Ref() core.IndirectRef { return p.ref }

// Index is the zero-based position of the page in the document.
func (p *Page) Index() int { return p.index }

// attr looks an attribute up on the page and then on its ancestors.
func (p *Page) attr(name string) core.Object {
	if v := p.dict.Get(name); v != nil {
		return v
	}
	if p.inherited != nil {
		return p.inherited.Get(name)
	}
	return nil
}

// MediaBox returns the page media box. A page without one is US Letter.
func (p *Page) MediaBox() (model.BBox, error) {
	box, err := p.getBox("MediaBox")
	if err != nil {
		return model.BBox{}, err
	}
	if box == nil {
		return model.BBox{Width: 612, Height: 792}, nil
	}
	return *box, nil
}

// CropBox returns the page crop box, defaulting to the media box.
func (p *Page) CropBox() (model.BBox, error) {
	box, err := p.getBox("CropBox")
	if err != nil || box == nil {
		return p.MediaBox()
	}
	return *box, nil
}

// getBox returns nil, nil when the box is absent.
func (p *Page) getBox(name string) (*model.BBox, error) {
	boxObj := p.attr(name)
	if boxObj == nil {
		return nil, nil
	}

	boxResolved, err := p.resolver.Resolve(boxObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	boxArr, ok := boxResolved.(core.Array)
	if !ok {
		return nil, fmt.Errorf("invalid %s type: %T", name, boxResolved)
	}
	if len(boxArr) != 4 {
		return nil, fmt.Errorf("invalid %s length: %d (expected 4)", name, len(boxArr))
	}
	v, err := boxArr.Numbers()
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	box := model.NewBBoxFromPoints(model.Point{X: v[0], Y: v[1]}, model.Point{X: v[2], Y: v[3]})
	return &box, nil
}

// Resources returns the page resources dictionary. A page without
// resources gets an empty dictionary.
func (p *Page) Resources() (core.Dict, error) {
	resourcesObj := p.attr("Resources")
	if resourcesObj == nil {
		return core.Dict{}, nil
	}

	resourcesResolved, err := p.resolver.Resolve(resourcesObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	switch v := resourcesResolved.(type) {
	case core.Dict:
		return v, nil
	case core.Null:
		return core.Dict{}, nil
	}
	return nil, fmt.Errorf("invalid Resources type: %T", resourcesResolved)
}

// Contents returns the page content stream(s)
func (p *Page) Contents() ([]*core.Stream, error) {
	contentsObj := p.dict.Get("Contents")
	if contentsObj == nil {
		return nil, nil // Contents is optional
	}

	contentsResolved, err := p.resolver.Resolve(contentsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	// Contents can be a single stream or array of streams
	switch v := contentsResolved.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for i, elem := range v {
			resolved, err := p.resolver.Resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			s, ok := resolved.(*core.Stream)
			if !ok {
				return nil, fmt.Errorf("contents[%d] is %T, not a stream", i, resolved)
			}
			streams = append(streams, s)
		}
		return streams, nil
	case core.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid Contents type: %T", contentsResolved)
	}
}

// Content decodes and concatenates the content streams. Streams are
// separated by a newline so tokens cannot run together.
func (p *Page) Content() ([]byte, error) {
	streams, err := p.Contents()
	if err != nil {
		return nil, err
	}
	var data []byte
	for i, s := range streams {
		decoded, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		if i > 0 {
			data = append(data, '\n')
		}
		data = append(data, decoded...)
	}
	return data, nil
}

// Rotate returns the page rotation (0, 90, 180, or 270)
func (p *Page) Rotate() int {
	if n, ok := core.Number(p.attr("Rotate")); ok {
		r := int(n) % 360
		if r < 0 {
			r += 360
		}
		return r
	}
	return 0
}

// UserUnit returns the size of a user space unit in points, 1 by default.
func (p *Page) UserUnit() float64 {
	if n, ok := core.Number(p.dict.Get("UserUnit")); ok && n > 0 {
		return n
	}
	return 1
}
