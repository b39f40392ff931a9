package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/doctorsched/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// booking-event-sim publishes booking events the way the booking service does, for local testing
// of the doctor-service availability projection.
func main() {
	var (
		brokers     = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		kind        = flag.String("kind", "booked", "event kind: booked or cancelled")
		appointment = flag.String("appointment-id", "", "appointment id (random when empty)")
		doctor      = flag.Int64("doctor-id", 0, "doctor id")
		start       = flag.String("start", "", "start time, RFC 3339")
		duration    = flag.Duration("duration", 30*time.Minute, "appointment length")
	)
	flag.Parse()

	if *doctor <= 0 {
		fatal("--doctor-id is required")
	}
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(*start))
	if err != nil {
		fatal("--start must be RFC 3339: " + err.Error())
	}
	if *duration <= 0 {
		fatal("--duration must be positive")
	}

	topic, err := topicFor(*kind)
	if err != nil {
		fatal(err.Error())
	}
	id := strings.TrimSpace(*appointment)
	if id == "" {
		id = uuid.NewString()
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"doctor_id":      *doctor,
		"start_time":     startAt.UTC(),
		"end_time":       startAt.Add(*duration).UTC(),
	})
	if err != nil {
		fatal(err.Error())
	}

	list := kafkax.SplitBrokers(*brokers)
	if len(list) == 0 {
		fatal("no kafka brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: topic}
	err = w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(id),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published %s appointment_id=%s event_id=%s\n", topic, id, meta.EventID)
}

func topicFor(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "booked":
		return getenv("KAFKA_TOPIC_BOOKED", "booking.appointment.booked.v1"), nil
	case "cancelled", "canceled":
		return getenv("KAFKA_TOPIC_CANCELLED", "booking.appointment.cancelled.v1"), nil
	default:
		return "", fmt.Errorf("unsupported event kind: %s", kind)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
