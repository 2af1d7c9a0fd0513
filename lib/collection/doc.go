/*
Package collection provides typed record collections on top of a store.IStore.

A Collection[T] keeps each record of type T as one store entry under prefix+id,
encoded with a serializer.ICodec (JSON by default). Several collections can share a
store as long as their prefixes differ.

# Notifications

Subscribers receive an Event when a record is created (EventAssign) or dropped
(EventDelete). Overwriting an existing record emits nothing. Every subscriber owns an
unbounded queue, so writers never wait for readers.

	sub := media.Subscribe()
	defer sub.Close()
	for ev := range sub.Events() {
		...
	}

# Documents

DocStore specializes a collection for doc.Document. Put stores a document under its
content ID. Update merges a patch into a stored document and puts the merged result,
which yields a new ID whenever the content changes; the old entry stays as it was.
Patch merges in place under the existing ID and is the right choice for records that
are edited by the user.
*/
package collection
