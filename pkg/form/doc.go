// Package form models the host form-builder configuration that processors
// read and rewrite: fields keyed by ID (with slugs for magic-tag lookups),
// processor instances with their runtimes and per-instance configuration, and
// the submission payload handed to pre-processors. Forms are plain values;
// filters receive clones so shared definitions loaded from disk are never
// mutated while a request is in flight.
package form
