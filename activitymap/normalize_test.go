package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activitymap"
)

func TestNormalizeSignIn(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventSignInSuccess,
		UserID:    "user-100",
		Role:      auth.RoleTeacher,
		Metadata: map[string]any{
			"token_id": "jti-1",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventSignInSuccess) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventSignInSuccess, out.Verb)
	}
	if out.ObjectType != activitymap.ObjectSession {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "jti-1" {
		t.Fatalf("expected object_id jti-1, got %q", out.ObjectID)
	}
	if out.Channel != "portal-auth" {
		t.Fatalf("expected channel portal-auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "TEACHER" {
		t.Fatalf("expected metadata role TEACHER, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeSystemEvents(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventSessionsSwept,
		Metadata:  map[string]any{"expired_deleted": 3},
	})

	if out.ActorID != "system" {
		t.Fatalf("expected system actor, got %q", out.ActorID)
	}
	if out.ObjectType != activitymap.ObjectSession || out.ObjectID != "" {
		t.Fatalf("unexpected object %q/%q", out.ObjectType, out.ObjectID)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to default to now")
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyRole]; ok {
		t.Fatalf("expected no role metadata for system events")
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventChildAccessDenied,
		Role:      auth.RoleParent,
		Metadata: map[string]any{
			"child_id":                  "c7",
			activitymap.MetadataKeyRole: "existing",
		},
	}

	out := activitymap.Normalize(event,
		activitymap.WithChannel("audit"),
		activitymap.WithActorFallback("anonymous"),
	)

	if out.Channel != "audit" {
		t.Fatalf("expected channel audit, got %q", out.Channel)
	}
	if out.ActorID != "anonymous" {
		t.Fatalf("expected actor anonymous, got %q", out.ActorID)
	}
	if out.ObjectType != activitymap.ObjectChild || out.ObjectID != "c7" {
		t.Fatalf("unexpected object %q/%q", out.ObjectType, out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "existing" {
		t.Fatalf("expected existing role metadata to win, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}
}
