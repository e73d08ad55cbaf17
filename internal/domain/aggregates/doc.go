// Package aggregates declares the write contracts of the conventions engine: conventions,
// annexes, avenants and their price lines, plus the error codes every operation reports.
package aggregates
