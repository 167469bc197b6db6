package router

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"cepbridge/internal/events"
)

// fakePublisher records publishes and can fail selected topics.
type fakePublisher struct {
	published []publishCall
	failTopic string
}

type publishCall struct {
	topic string
	key   string
	value []byte
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	if topic == f.failTopic {
		return fmt.Errorf("broker unavailable")
	}
	f.published = append(f.published, publishCall{topic: topic, key: string(key), value: value})
	return nil
}

func testAlert(roles ...string) *events.AlertRecord {
	return &events.AlertRecord{
		AlertID: "alert-1",
		Rule:    "tempRule",
		Roles:   roles,
		Message: "[tempRule] Matched values: [28, 29, 30]",
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Buyer", "buyer"},
		{" seller ", "seller"},
		{"", ""},
		{"  ", ""},
		{"REGULATOR", "regulator"},
	}

	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTopicForRole(t *testing.T) {
	if got := TopicForRole("buyer"); got != "role.buyer" {
		t.Errorf("TopicForRole(buyer) = %q, want role.buyer", got)
	}
}

func TestRouter_FanOut(t *testing.T) {
	// ["Buyer", " seller ", ""]: exactly two deliveries, keyed role.buyer
	// and role.seller; the empty role is skipped.
	pub := &fakePublisher{}
	r := NewRouter(pub)

	alert := testAlert("Buyer", " seller ", "")
	if err := r.Route(context.Background(), alert); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("got %d deliveries, want 2", len(pub.published))
	}
	if pub.published[0].topic != "role.buyer" {
		t.Errorf("first delivery topic = %q, want role.buyer", pub.published[0].topic)
	}
	if pub.published[1].topic != "role.seller" {
		t.Errorf("second delivery topic = %q, want role.seller", pub.published[1].topic)
	}

	// The payload is the serialized alert record.
	var decoded events.AlertRecord
	if err := json.Unmarshal(pub.published[0].value, &decoded); err != nil {
		t.Fatalf("delivered payload is not a valid alert: %v", err)
	}
	if decoded.AlertID != "alert-1" {
		t.Errorf("delivered alert_id = %q, want alert-1", decoded.AlertID)
	}
}

func TestRouter_FailedRoleDoesNotAbortOthers(t *testing.T) {
	pub := &fakePublisher{failTopic: "role.buyer"}
	r := NewRouter(pub)

	err := r.Route(context.Background(), testAlert("buyer", "seller"))
	if err == nil {
		t.Fatal("Route() should report the failed delivery")
	}

	if len(pub.published) != 1 || pub.published[0].topic != "role.seller" {
		t.Errorf("seller delivery missing after buyer failure: %+v", pub.published)
	}
}

func TestRouter_AllRolesEmpty(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub)

	if err := r.Route(context.Background(), testAlert("", "  ")); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("got %d deliveries, want 0", len(pub.published))
	}
}
