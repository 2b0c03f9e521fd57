package redisx

import "time"

const (
	// Session identity: identity:{token} -> JSON identity
	KeyIdentity = "identity:%s"

	// In-flight guard per account: lock:account:{account_id} -> owner token
	KeyAccountLock = "lock:account:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Product list cache per restaurant: products:{clave_restaurante}
	KeyProducts = "products:%s"
)

var (
	TTLAccountLock = 30 * time.Second
	TTLDedup       = 48 * time.Hour
	TTLProducts    = 2 * time.Minute
)
