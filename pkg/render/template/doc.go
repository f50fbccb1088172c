// Package template defines the seam HTML renderers use to execute named
// templates. The pongo2-backed implementation lives in the gotemplate
// subpackage.
package template
