package redis

import "strconv"

const (
	// KeyPrefixUpdate is the prefix for delivered Telegram update ids
	KeyPrefixUpdate = "mediabot:update:"
	// KeyStats is the hash of lifetime handler counters
	KeyStats = "mediabot:stats"
	// KeyPlatformStats is the hash of extractions per platform and method
	KeyPlatformStats = "mediabot:stats:platform"
)

// UpdateKey returns the Redis key marking an update as delivered
func UpdateKey(id int64) string {
	return KeyPrefixUpdate + strconv.FormatInt(id, 10)
}

// PlatformField returns the KeyPlatformStats field for a platform and method
func PlatformField(platform, method string) string {
	return platform + ":" + method
}
