package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every factoryd topic.
const TopicPrefix = "factoryd"

// Topics builds factoryd topic names.
//
//	topics := mqtt.Topics{}
//	topics.Request("furnace-turtle")  // "factoryd/request/furnace-turtle"
type Topics struct{}

// Request returns the topic a remote client listens on for requests.
//
// Example: factoryd/request/base
func (Topics) Request(client string) string {
	return fmt.Sprintf("%s/request/%s", TopicPrefix, client)
}

// Response returns the topic a remote client publishes replies on.
//
// Example: factoryd/response/base
func (Topics) Response(client string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefix, client)
}

// AllResponses matches the replies of every client.
//
// Pattern: factoryd/response/+
func (Topics) AllResponses() string {
	return TopicPrefix + "/response/+"
}

// SystemStatus returns the retained factoryd status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ClientOf returns the client name at the end of a request or response
// topic, or "" if topic is not one.
func (Topics) ClientOf(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix {
		return ""
	}
	if parts[1] != "request" && parts[1] != "response" {
		return ""
	}
	return parts[2]
}
