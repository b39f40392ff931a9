package outbox

// Event is the envelope written to the outbox table. The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateDoctor    = "doctor"
	EventDoctorCreated = "doctor.created.v1"
)
