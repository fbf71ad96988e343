package kafka

import "fmt"

// TopicPrefix namespaces every topic the service publishes to.
const TopicPrefix = "skybook"

// Topic builds a fully qualified topic name from a domain and an action,
// e.g. Topic("ticket", "purchased") -> "skybook.ticket.purchased".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
