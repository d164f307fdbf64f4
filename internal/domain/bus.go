package domain

// Bus topics. The requested topic fans one investigation out to every
// inspector; the findings topic fans their notifications back in to the
// notifier.
const (
	TopicInvestigationRequested = "investigation.requested"
	TopicInvestigationFindings  = "investigation.findings"
)

// Delivery is one record handed to a consumer. Attempt starts at 1 and grows
// on redelivery; consumers must tolerate duplicates (at-least-once).
type Delivery struct {
	Payload []byte
	Attempt int
}

// MessageBus is the fan-out/fan-in transport between the dispatcher, the
// inspectors and the notifier. Each (topic, consumer) pair gets its own
// ordered queue; every consumer of a topic receives its own copy of each
// published payload.
type MessageBus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic, consumer string) <-chan Delivery
	Close()
}
