// Package audit writes per-run import records into the ticketing
// platform's custom-object store. Schema creation is idempotent and
// record writes are best-effort: a run never fails because its audit
// record could not be written.
package audit
