package core

import (
	"context"
	"crypto/tls"
	"time"

	"httpsd/internal/server"
	"httpsd/util"
)

// ServeMode runs a Listener until the context is cancelled, then stops
// it gracefully.
type ServeMode struct {
	Listener    *server.Listener
	Address     string
	Certificate tls.Certificate
	GracePeriod time.Duration
	Logger      *util.Logger

	// Ready, if set, receives the bound address once listening.
	Ready chan<- string
}

// Run starts the listener and blocks until ctx ends.
func (m *ServeMode) Run(ctx context.Context) error {
	addr, err := m.Listener.Start(m.Address, m.Certificate)
	if err != nil {
		return err
	}
	if m.Ready != nil {
		m.Ready <- addr.String()
	}

	<-ctx.Done()
	m.Logger.Verbose("shutting down (grace period %v)", m.GracePeriod)

	// Stop enforces the grace period itself; the extra second only
	// bounds the forced close that follows it.
	stopCtx, cancel := context.WithTimeout(context.Background(), m.GracePeriod+time.Second)
	defer cancel()
	return m.Listener.Stop(stopCtx)
}
