// Package media holds the media metadata record and its typed field updates.
//
// Field assignments are values of the closed Field set (Title, Format, URL) instead of
// free-form field names, so an update can only name a field that exists. ParseField
// converts CLI or wire input and rejects unknown names.
package media
