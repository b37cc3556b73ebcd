package events_test

import (
	"encoding/json"
	"testing"

	"github.com/ardanlabs/poagov/foundation/events"
)

func Test_Publish(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	ch := evts.Acquire("a")
	if again := evts.Acquire("a"); again != ch {
		t.Fatalf("Should return the same channel for the same id.")
	}

	evts.Publish("governance", map[string]string{"event": "NomineeProposed"})

	var msg struct {
		Topic string            `json:"topic"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal([]byte(<-ch), &msg); err != nil {
		t.Fatalf("Should be able to decode the message: %s", err)
	}

	if msg.Topic != "governance" || msg.Data["event"] != "NomineeProposed" {
		t.Logf("got: %+v", msg)
		t.Fatalf("Should receive the published message.")
	}

	if err := evts.Release("a"); err != nil {
		t.Fatalf("Should be able to release the channel: %s", err)
	}
	if _, open := <-ch; open {
		t.Fatalf("Should close the released channel.")
	}
	if err := evts.Release("a"); err == nil {
		t.Fatalf("Should not release an unknown id.")
	}
	if n := evts.Subscribers(); n != 0 {
		t.Fatalf("Should have no subscribers: got %d", n)
	}
}

func Test_SendDoesNotBlock(t *testing.T) {
	evts := events.New()
	defer evts.Shutdown()

	ch := evts.Acquire("slow")
	for i := 0; i < 500; i++ {
		evts.Send("x")
	}

	if n := len(ch); n != cap(ch) {
		t.Fatalf("Should fill the buffer and drop the rest: got %d", n)
	}
}
