// Package frametests holds helpers shared by the integration tests.
package frametests

import (
	"context"
	"fmt"
	"net"

	"github.com/pitabwire/util"
)

// FreeLoopbackAddress returns a 127.0.0.1 address whose port was free when probed,
// for tests that start a server through a listen address.
func FreeLoopbackAddress(ctx context.Context) (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("find free port: %w", err)
	}
	defer util.CloseAndLogOnError(ctx, l)

	return l.Addr().String(), nil
}
