// Package loader decodes candidate files into images on a best-effort basis.
// Unreadable or degenerate inputs are reported back to the caller instead of
// aborting the batch.
package loader
