// Package crawler holds the harvest domain types and the orchestration core
// shared by adapters: address resolution, retry classification and the
// multi-part pagination walk. Transports, parsers and sinks live in sibling
// packages and plug in through the interfaces defined here.
package crawler
