// Package blinkpay holds the types shared by the walletless session and
// payment-intent packages.
//
// The core is split by concern:
//   - keyprovider: symmetric encryption of session secrets
//   - audit: bounded, queryable ledger of security events
//   - session: ephemeral signing keys with expiry, LRU capacity and backup/restore
//   - address: program-derived and associated token addresses
//   - intent: unsigned pay, split-pay and partial-refund transactions
//   - quote: short-lived fiat to token quotes
//   - webhook: at-most-once signed webhook delivery
//
// Supporting infrastructure (chain RPC, relational store, metrics, HTTP
// server and the blinkpayd daemon) lives alongside and is wired in cmd/blinkpayd.
package blinkpay
