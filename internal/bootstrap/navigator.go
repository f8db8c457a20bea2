package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/instantmart/admin-console/internal/ports"
)

// LogNavigator records redirect-to-login requests in the log. The console server
// has no browser to steer; the next guarded request redirects on its own.
type LogNavigator struct {
	Logger *slog.Logger
}

var _ ports.Navigator = LogNavigator{}

// ToLogin logs the reason the session ended.
func (n LogNavigator) ToLogin(ctx context.Context, reason string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "operator must sign in again", "reason", reason)
}

// PromptNavigator tells a terminal operator to log in again.
type PromptNavigator struct {
	mu  sync.Mutex
	Out io.Writer
}

var _ ports.Navigator = (*PromptNavigator)(nil)

// ToLogin prints reason with a hint to run the login command.
func (n *PromptNavigator) ToLogin(_ context.Context, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(n.Out, "%s Run \"instantmart-admin login\" to continue.\n", reason)
}
