// Package boltengine provides an embedded bbolt backend for the entitystore.
//
// Every entity gets its own nested bucket below the root events bucket, keyed by the big-endian
// entity id. Events inside it are keyed by a big-endian id drawn from the root bucket sequence,
// so a reverse cursor walk yields the newest events first.
//
// bbolt allows a single writable transaction at a time. The Engine bounds the number of
// outstanding handles with a weighted semaphore, and Begin queues on the bbolt writer lock.
//
// Usage example:
//
//	engine, _ := boltengine.Open("entities.db", 8)
//	defer engine.Close()
//	store, _ := entitystore.NewStore(engine)
package boltengine
