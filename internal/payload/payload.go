// Package payload provides the attack payload catalog used by drill tasks.
//
// Payloads are sent unencoded (apart from spaces, which would break the
// request line) so that the WAF under test sees the raw signature exactly
// as an attacker would submit it.
package payload

import "strings"

// Canonical probes. These are the defaults for the built-in drill and the
// first entry of their respective categories.
const (
	// XSSCanonical is a script-injection snippet carried in a query parameter.
	XSSCanonical = "<script>alert('WAF_TEST')</script>"

	// SQLiCanonical is a SQL tautology clause carried in a query parameter.
	SQLiCanonical = "1' OR '1'='1"
)

// Category identifies a payload category.
type Category string

const (
	CategoryXSS  Category = "xss"
	CategorySQLi Category = "sqli"
)

// XSS returns script-injection probes, canonical payload first.
func XSS() []string {
	return []string{
		XSSCanonical,
		"<img src=x onerror=alert('WAF_TEST')>",
		"\"><svg/onload=alert('WAF_TEST')>",
	}
}

// SQLi returns SQL-injection probes, canonical payload first.
func SQLi() []string {
	return []string{
		SQLiCanonical,
		"1 UNION SELECT NULL--",
		"1; DROP TABLE users--",
	}
}

// ByCategory returns the probe set for a category, or nil for an unknown one.
func ByCategory(c Category) []string {
	switch c {
	case CategoryXSS:
		return XSS()
	case CategorySQLi:
		return SQLi()
	default:
		return nil
	}
}

// QueryEncode prepares a payload for inclusion in a query string. Only the
// characters that would make the HTTP request line unparseable are escaped;
// everything the WAF should inspect stays raw.
func QueryEncode(p string) string {
	return strings.ReplaceAll(p, " ", "%20")
}
