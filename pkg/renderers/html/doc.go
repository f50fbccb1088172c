// Package html renders host forms as plain HTML using embedded pongo2
// templates. Processor notes are sanitized before they reach the page.
package html
