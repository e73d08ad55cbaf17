// Package aggregates implements the convention write surface on GORM.
//
// Each aggregate composes the per-table repos of internal/data/repos inside one
// TxRunner transaction, so a failed activation or duplication leaves no partial rows.
package aggregates
