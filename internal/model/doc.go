// Package model defines the core data structures used throughout skycrawl.
//
// This package contains the following main types:
//   - Identity: An opaque actor key (DID or handle) identifying a graph node
//   - Edge: A directed "follows" relation observed during traversal
//   - FollowPage: One page of a paginated follow listing
//   - EnrichedProfile: Attributes fetched for an enrolled identity
//   - CrawlReport: The summary of one crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, pipeline, transport and storage packages all
// exchange these values, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
