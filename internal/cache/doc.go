// Package cache is the client-side query cache that realtime events
// invalidate.
//
// Entries are keyed by query kind and subject. Invalidate bumps an entry's
// generation so readers holding an older generation know to refetch. The
// Sink adapter maps notification socket events onto invalidations.
package cache
