// Package threat provides the business boundary for ransomfuse's claim
// fusion pipeline. It defines the Service (per-adapter batch runs), the
// Resolver (threat-actor identity by name key), the Deduplicator (incident
// upsert and corroboration), the Reclassifier, the Store and StatsSink
// persistence interfaces, and the domain models.
package threat
