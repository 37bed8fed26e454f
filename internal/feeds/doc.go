// Package feeds holds the source adapters that turn public ransomware
// leak-site trackers into threat.RawClaim batches.
//
// Every adapter fetches through a shared Fetcher, which applies a per-host
// rate limit, an optional short-lived response cache, and maps transport
// and decoding failures onto *FetchError. Field names differ between feeds
// and between versions of the same feed, so each canonical field is read
// from an ordered list of candidate keys; the first non-empty value wins.
package feeds
