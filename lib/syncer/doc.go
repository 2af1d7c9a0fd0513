/*
Package syncer reconciles a local collection with the remote media service.

One run sends every local ID to the remote, which answers with the records the caller
is missing and the caller's IDs it does not know:

	POST /api/sync/media {"ids":[...]}  ->  {"missing":{id:record},"unknown":[id]}

Missing records are stored locally. Unknown IDs are dropped (PolicyPrune, the default)
or pushed to the remote (PolicyShare). Runs are idempotent; there is no merge on this
path, document merging happens in collection.DocStore.

Engine.Loop repeats runs on an interval and whenever the local collection creates or
drops a record.
*/
package syncer
