// Package services contains the core business logic for memory ingestion,
// hybrid retrieval and query history. Services depend only on the port
// interfaces, never on concrete adapters.
package services
