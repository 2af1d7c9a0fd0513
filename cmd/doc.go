// Package cmd implements the command-line interface of mstore. It provides a
// hierarchical command structure for working with the local store and keeping it in
// sync with the remote media service.
//
// The package is organized into several subpackages:
//
//   - kv: raw key-value access to the local store, the remote or the cache
//   - media: the typed media collection (list, edit, watch)
//   - document: the document store (put, update, patch)
//   - reconcile: the sync command
//   - cache: write-back maintenance (flush, dirty)
//   - util: shared flags, configuration and store setup (internal use)
//
// See mstore -help for a list of all commands.
package cmd
