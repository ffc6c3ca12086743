// Package pages flattens the PDF page tree into an ordered page list.
//
// PDF documents organize pages in a tree of /Pages nodes with /Page
// leaves. [PageTree] walks that tree depth-first:
//
//	tree := pages.NewPageTree(pagesDict, resolver)
//	list, _ := tree.Pages()
//
// # Inheritance
//
// Resources, MediaBox, CropBox and Rotate may be set on any ancestor
// node. Each [Page] carries the values it inherits, so lookups never walk
// back up the tree.
//
// # Object Resolution
//
// The [ObjectResolver] interface abstracts object lookup, so the page tree
// does not depend on the reader:
//
//	type ObjectResolver interface {
//	    Resolve(obj core.Object) (core.Object, error)
//	}
package pages
