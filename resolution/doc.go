// Package resolution computes the effective resolution of every painted
// image and folds the results into a [Map] holding the minimum DPI per
// image key.
//
// An image W pixels wide whose CTM stretches it across S default units
// (1/72 inch) has a horizontal resolution of W / (S/72) DPI. The map keeps
// the smallest value seen for a key, so shrinking to the stored value never
// takes detail away from the most demanding placement.
//
// Keys are resource names, optionally qualified by page (see [Scope]).
package resolution
