package store

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// rowPlaceholders returns "(?,?),(?,?)" for rows groups of width columns.
func rowPlaceholders(rows, width int) string {
	group := "(" + placeholderList(width) + ")"
	return strings.Repeat(group+",", rows-1) + group
}

func bodyHash(body []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(body))
}

type rowScanner interface{ Scan(...any) error }
