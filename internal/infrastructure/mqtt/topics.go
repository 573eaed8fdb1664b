package mqtt

import (
	"fmt"
	"strings"
)

const (
	// TopicPrefix is the root of every topic the service publishes.
	TopicPrefix = "orgadmin"

	// TopicPrefixSecurity is the base for security event topics.
	TopicPrefixSecurity = TopicPrefix + "/security"
)

// Topics provides builders for orgadmin MQTT topics.
//
//	topic := mqtt.Topics{}.SecurityEvent("login_failed")
//	// Returns: "orgadmin/security/login_failed"
type Topics struct{}

// SystemStatus is the retained online/offline status topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SecurityEvent returns the topic for one kind of security event.
// The kind is lower-cased and path separators are replaced so a kind can never
// address another branch of the hierarchy.
func (Topics) SecurityEvent(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	kind = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(kind)
	if kind == "" {
		kind = "unknown"
	}
	return fmt.Sprintf("%s/%s", TopicPrefixSecurity, kind)
}

// AllSecurityEvents is the wildcard subscribers use for every security event.
func (Topics) AllSecurityEvents() string {
	return TopicPrefixSecurity + "/#"
}

// validPublishTopic rejects empty topics and MQTT wildcards, which are only
// legal in subscriptions.
func validPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
