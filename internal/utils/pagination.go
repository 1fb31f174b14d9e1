// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Paginate clamps a 1-based page and a page size and returns the row limit
// and offset. Pages below 1 become 1; sizes outside (0, MaxPageSize] become
// DefaultPageSize or MaxPageSize.
func Paginate(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return pageSize, (page - 1) * pageSize
}
