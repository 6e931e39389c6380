// Package sanitizer provides input normalization applied before validation and storage.
//
// All normalization functions are idempotent - applying them multiple times produces
// the same result. Invalid input is handled by returning empty strings or empty
// slices rather than errors; validation decides what is acceptable.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Identifiers: Usernames and emails are trimmed and lowercased
//   - Phones: Formatted in E.164, resolved against the configured regions
//   - Labels: Equipment tags are lowercased with separators collapsed - "Video  Conference" becomes "video_conference"
//   - Free text: Booking purposes keep line breaks but lose trailing whitespace and control characters
//   - Slices: Remove duplicates and empty values after normalization
package sanitizer
