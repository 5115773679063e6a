// Package model holds the declarative descriptors the migration engine diffs
// against a live database.
//
// A descriptor is built once per model type, either in Go or by loading a
// YAML file, and carries everything the engine needs: table and schema
// names, primary and unique keys, column types with length, precision,
// scale and collation, defaults, calculated expressions, foreign keys and
// enum-backed lookup tables. Nothing is introspected at diff time.
//
// Example file:
//
//	enums:
//	  - name: OrderStatus
//	    schema: lookup
//	    key_generation: pinned
//	    members:
//	      - {name: Open, value: 0}
//	      - {name: Closed, value: 1}
//	models:
//	  - name: Region
//	    properties:
//	      - {name: Id, kind: int32, key_generation: identity}
//	      - {name: Name, kind: string, length: 50, required: true}
//	  - name: Customer
//	    properties:
//	      - {name: Id, kind: int32, key_generation: identity}
//	      - {name: RegionId, kind: int32, foreign_key: {model: Region}}
//	      - {name: Status, kind: enum, enum: OrderStatus}
package model
