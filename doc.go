/*
Package ketama implements the ketama flavour of consistent hashing.

Ketama maps keys from a very big set of values (e.g. cache keys) to an item of a
quite small set (e.g. memcached or redis servers). Each server is placed on a
32-bit ring at PointsPerServer points; a key belongs to the server owning the
first point at or after the key's hash, wrapping around to the smallest point.
Adding or removing a server moves only the keys of the arcs that server owns.

The point placement is compatible with other ketama clients using the same
hash function and strategy. The default setup, FNV-1a 32-bit key hashing with
chained server placement, reproduces the mapping of the Java, C# and PHP
clients:

	var ring ketama.Ring
	ring.Add(
		ketama.MustServer("redis1", "10.0.0.1", 6379),
		ketama.MustServer("redis2", "10.0.0.2", 6379),
	)
	srv, err := ring.Lookup("user:42")

Ring keeps its points in an immutable AVL tree. Writers are serialized and
publish a new tree root after each mutation, so lookups are never blocked for
longer than a pointer swap. Membership changes themselves are expected to come
from a single configuration refresh routine (see the discovery package).
*/
package ketama
