package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenTTL() time.Duration
	GetCookieName() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetSignInPath() string
	GetRejectedRouteKey() string
	GetVerificationTTL() time.Duration
	GetInactivityThreshold() time.Duration
	GetJanitorSchedule() string
	GetMaintenanceSecret() string
}

// Mailer delivers verification links. Delivery itself is owned by the host
// application.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string, expiresAt time.Time) error
}

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

type noopMailer struct{}

func (noopMailer) SendVerification(context.Context, string, string, time.Time) error {
	return nil
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Println("[ERR] AUTH " + render(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Println("[WRN] AUTH " + render(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Println("[INF] AUTH " + render(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Println("[DBG] AUTH " + render(format, args...))
}

// render supports both printf style calls and message + key/value pairs.
func render(format string, args ...any) string {
	if len(args) == 0 {
		return strings.TrimRight(format, "\n")
	}
	if strings.Contains(format, "%") {
		return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(format, "\n"))
	for i := 0; i < len(args); i += 2 {
		b.WriteString(" ")
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, "%v", args[i])
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
