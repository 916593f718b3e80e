// Package types defines the core data model for the chunkgraph pipeline:
// entities, relationships, evidence, and the chunk-boundary types consumed
// from the parsing front end.
//
// Entities and relationships are value-holding structs with their merge
// behavior attached. They reference each other only by identifier, never by
// pointer; the graph package owns the lookup indexes that resolve those
// identifiers.
package types
