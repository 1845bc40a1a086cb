// Package scraper defines the record, collaborator interfaces and run state
// shared by the traverser and the processing pipeline.
package scraper
