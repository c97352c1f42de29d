// Package webhook delivers signed webhook notifications at most once per
// idempotency key.
//
// # How It Works
//
//  1. Send atomically checks the IdempotencyStore and marks the key Pending.
//  2. If the key was already Pending or Used, Send returns StatusIgnored
//     without any network I/O.
//  3. Otherwise the payload is serialized, signed with HMAC-SHA256 and POSTed
//     once, with the X-Blinkpay-Signature and Idempotency-Key headers.
//  4. The key is moved to Used whatever the outcome. Failed deliveries are
//     not retried under the same key.
//
// # Stores
//
// The default InMemoryStore suits a single process. For several replicas
// use RedisStore, which relies on SETNX for the check-and-mark:
//
//	store := webhook.NewRedisStore(redisClient, 24*time.Hour)
//	d := webhook.NewDispatcher(webhook.WithStore(store))
package webhook
