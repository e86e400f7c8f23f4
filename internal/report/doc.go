// Package report carries stage failures from the extract, load and export
// jobs to pluggable sinks (structured logs, Prometheus counters, or an
// in-memory recorder used by tests). Every event is classified with one of
// three kinds: connectivity, malformed response/input, or data error.
package report
