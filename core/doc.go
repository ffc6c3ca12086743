// Package core implements the PDF object layer used by pdfshrink.
//
// It contains the object types ([Null], [Bool], [Int], [Real], [String],
// [Name], [Array], [Dict], [Stream] and [IndirectRef]), a [Lexer] and
// [Parser] for the PDF syntax, cross-reference handling for both classic
// xref tables and PDF 1.5 xref streams ([XRefParser]), object streams
// ([ObjectStream]), stream decoding ([Stream.Decode]) and serialization of
// objects back to PDF syntax ([WriteObject]).
package core
