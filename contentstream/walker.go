package contentstream

import (
	"errors"
	"fmt"

	"github.com/tsawler/pdfshrink/core"
	"github.com/tsawler/pdfshrink/diag"
	"github.com/tsawler/pdfshrink/docmodel"
	"github.com/tsawler/pdfshrink/graphicsstate"
	"github.com/tsawler/pdfshrink/model"
)

// DefaultMaxDepth limits how deeply forms may nest.
const DefaultMaxDepth = 32

// Occurrence is one painting of an image XObject.
type Occurrence struct {
	PageIndex   int // zero-based
	Name        string
	PixelWidth  int
	PixelHeight int
	// XScale and YScale are the lengths, in default user space units
	// (1/72 inch), of the CTM-transformed unit square's sides.
	XScale float64
	YScale float64
	CTM    model.Matrix
	Image  *docmodel.Image
}

// Walker interprets content streams far enough to know where images land.
// Only q, Q, cm and Do have an effect; every other operator is ignored.
type Walker struct {
	// OnImage is called for every Do that paints an image.
	OnImage func(Occurrence)
	// Sink receives non-fatal problems (unknown names, unbalanced Q, ...).
	Sink diag.Sink
	// MaxDepth caps form nesting; zero means DefaultMaxDepth.
	MaxDepth int
}

type walk struct {
	page     docmodel.Page
	pageRes  docmodel.Resources
	stack    *graphicsstate.Stack
	active   map[int]bool
	sink     diag.Sink
	maxDepth int
}

// Walk interprets the page's content. Errors reading the page itself are
// returned; problems inside the content are reported to the Sink.
func (w *Walker) Walk(page docmodel.Page) error {
	res, err := page.Resources()
	if err != nil {
		return fmt.Errorf("page %d resources: %w", page.Index()+1, err)
	}
	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("page %d content: %w", page.Index()+1, err)
	}

	base := model.Identity()
	if u := page.UserUnit(); u > 0 && u != 1 {
		base = model.Scale(u, u)
	}
	st := &walk{
		page:     page,
		pageRes:  res,
		stack:    graphicsstate.NewStack(base),
		active:   make(map[int]bool),
		sink:     diag.OrDiscard(w.Sink),
		maxDepth: w.MaxDepth,
	}
	if st.maxDepth <= 0 {
		st.maxDepth = DefaultMaxDepth
	}
	w.run(st, content, res, 0, "")
	return nil
}

func (st *walk) report(resource, format string, args ...interface{}) {
	st.sink.Report(diag.Event{
		Kind:     diag.ContentError,
		Page:     st.page.Index() + 1,
		Resource: resource,
		Message:  fmt.Sprintf(format, args...),
	})
}

// run interprets one content stream. Q never pops below floor, the stack
// depth on entry, so a form cannot unbalance its caller.
func (w *Walker) run(st *walk, content []byte, res docmodel.Resources, depth int, owner string) {
	floor := st.stack.Depth()
	p := NewParser(content)
	for {
		op, err := p.Next()
		if err != nil {
			st.report(owner, "content stream: %v", err)
			break
		}
		if op == nil {
			break
		}

		switch op.Operator {
		case "q":
			st.stack.Push()
		case "Q":
			if st.stack.Depth() <= floor {
				st.report(owner, "unbalanced Q")
				continue
			}
			st.stack.Pop()
		case "cm":
			m, ok := matrixOperands(op.Operands)
			if !ok {
				st.report(owner, "cm needs six numbers, got %v", op.Operands)
				continue
			}
			st.stack.Concat(m)
		case "Do":
			w.paint(st, op.Operands, res, depth, owner)
		}
	}

	for st.stack.Depth() > floor {
		st.stack.Pop()
	}
}

func (w *Walker) paint(st *walk, operands []core.Object, res docmodel.Resources, depth int, owner string) {
	if len(operands) != 1 {
		st.report(owner, "Do needs one operand, got %d", len(operands))
		return
	}
	name, ok := operands[0].(core.Name)
	if !ok {
		st.report(owner, "Do operand is %T, not a name", operands[0])
		return
	}
	if res == nil {
		st.report(string(name), "no resources to look up XObject")
		return
	}
	xobj, err := res.Lookup(string(name))
	if err != nil {
		if errors.Is(err, docmodel.ErrNotFound) {
			st.report(string(name), "XObject not found")
		} else {
			st.report(string(name), "lookup: %v", err)
		}
		return
	}

	switch x := xobj.(type) {
	case *docmodel.Image:
		if w.OnImage == nil {
			return
		}
		ctm := st.stack.CTM()
		w.OnImage(Occurrence{
			PageIndex:   st.page.Index(),
			Name:        string(name),
			PixelWidth:  x.Width,
			PixelHeight: x.Height,
			XScale:      ctm.XScale(),
			YScale:      ctm.YScale(),
			CTM:         ctm,
			Image:       x,
		})
	case *docmodel.Form:
		w.enterForm(st, x, depth, string(name))
	}
}

func (w *Walker) enterForm(st *walk, form *docmodel.Form, depth int, name string) {
	if depth+1 > st.maxDepth {
		st.report(name, "form nesting deeper than %d", st.maxDepth)
		return
	}
	if form.ID != 0 {
		if st.active[form.ID] {
			st.report(name, "form paints itself")
			return
		}
		st.active[form.ID] = true
		defer delete(st.active, form.ID)
	}

	content, err := form.Content()
	if err != nil {
		st.report(name, "form content: %v", err)
		return
	}
	res := form.Resources
	if res == nil {
		res = st.pageRes
	}

	st.stack.Push()
	if form.HasMatrix {
		st.stack.Concat(form.Matrix)
	}
	w.run(st, content, res, depth+1, name)
	st.stack.Pop()
}

func matrixOperands(operands []core.Object) (model.Matrix, bool) {
	if len(operands) != 6 {
		return model.Matrix{}, false
	}
	v := make([]float64, 6)
	for i, o := range operands {
		n, ok := core.Number(o)
		if !ok {
			return model.Matrix{}, false
		}
		v[i] = n
	}
	return model.NewMatrix(v)
}
