// Package algo provides the algorithm registry shared by the sharding and
// encryption families.
//
// A Registry maps a capability ("sharding", "encryption") and a
// case-insensitive type name to a factory. NewInstance constructs a fresh
// algorithm, initializes it from a Descriptor's properties and returns it;
// configuration problems surface there, never at first use.
//
// The registry is an explicit value passed to whoever builds rules. Families
// populate it through their Register functions at process start, and
// registering twice is harmless.
package algo
