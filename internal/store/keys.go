package store

import "fmt"

// Key layout per spec §6. The `{event_id}` hash tag ensures all three
// keys touched by the atomic decision script co-locate on one shard of
// a clustered deployment.

func stockKey(eventID string) string {
	return fmt.Sprintf("coupon:{%s}:stock", eventID)
}

func participantsKey(eventID string) string {
	return fmt.Sprintf("coupon:{%s}:participants", eventID)
}

func userCacheKey(eventID, userID string) string {
	return fmt.Sprintf("coupon:user:{%s}:%s", eventID, userID)
}
