// Package cache layers a local store over a main (usually remote) store.
//
// Reads are served locally and fall back to the main store on a miss. Writes follow the
// selected Coherency: WriteThrough reaches the main store before the local one,
// WriteBack stays local until Flush. Pending write-back operations are kept as marker
// entries in the local store and never show up in Range.
package cache
