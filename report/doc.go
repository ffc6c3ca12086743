// Package report formats per-image statistics and keeps a history of runs.
//
// Statistics are written as aligned text ([WriteText]) or as an HTML table
// ([WriteHTML]). [History] stores each run and its images in a SQLite
// database so that savings can be compared across runs.
package report
