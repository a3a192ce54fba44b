// Package activitymap turns auth activity events into a flat audit record
// that log pipelines and activity stores can index.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-portal-auth"
)

const (
	// MetadataKeyRole stores the portal role of the actor
	MetadataKeyRole = "role"
	// MetadataKeyTokenID identifies the session an event refers to
	MetadataKeyTokenID = "token_id"
	// MetadataKeyChildID identifies the child a guardian asked for
	MetadataKeyChildID = "child_id"
)

const (
	defaultChannel = "portal-auth"
	systemActorID  = "system"
)

// Object types
const (
	ObjectSession      = "session"
	ObjectVerification = "email_verification"
	ObjectChild        = "child"
	ObjectUser         = "user"
)

// Normalized is a transport agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// Normalize converts an auth.ActivityEvent into the normalized shape.
// Events without a user, such as janitor sweeps, are attributed to the
// system actor.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: systemActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(event.UserID)
	if actorID == "" {
		actorID = options.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	objectType, objectID := objectOf(event)

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if channel = strings.TrimSpace(channel); channel != "" {
			opts.channel = channel
		}
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

func objectOf(event auth.ActivityEvent) (string, string) {
	switch event.EventType {
	case auth.ActivityEventSignInSuccess, auth.ActivityEventLogout:
		return ObjectSession, metadataString(event.Metadata, MetadataKeyTokenID)
	case auth.ActivityEventSessionsRevoked, auth.ActivityEventSessionsSwept:
		return ObjectSession, ""
	case auth.ActivityEventVerificationSent, auth.ActivityEventEmailVerified:
		return ObjectVerification, strings.TrimSpace(event.UserID)
	case auth.ActivityEventChildAccessDenied:
		return ObjectChild, metadataString(event.Metadata, MetadataKeyChildID)
	default:
		return ObjectUser, strings.TrimSpace(event.UserID)
	}
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if event.Role != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyRole]; !exists {
			metadata[MetadataKeyRole] = event.Role.String()
		}
	}

	return metadata
}

func metadataString(metadata map[string]any, key string) string {
	v, _ := metadata[key].(string)
	return strings.TrimSpace(v)
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
