// Package mockdapp is a reference dApp used as the dispatcher's own
// integration-test fixture, grounded on original_source's
// cw-mock-dapp-multi contract: it records every call it receives and
// succeeds unless the payload is literally "rollback", in which case it
// fails — exercising
// both the Success and Failure result paths without a real user
// contract.
package mockdapp

import (
	"context"
	"errors"
	"sync"

	"github.com/icon-project/xcall-core/internal/wire"
)

type Received struct {
	From      wire.NetworkAddress
	Data      []byte
	Protocols []string
}

type MockDApp struct {
	mu       sync.Mutex
	received []Received
}

func New() *MockDApp { return &MockDApp{} }

var ErrRevertFromDApp = errors.New("dapp: reverted")

func (m *MockDApp) HandleCallMessage(_ context.Context, from wire.NetworkAddress, data []byte, protocols []string) error {
	m.mu.Lock()
	m.received = append(m.received, Received{From: from, Data: append([]byte(nil), data...), Protocols: protocols})
	m.mu.Unlock()

	if string(data) == "rollback" {
		return ErrRevertFromDApp
	}
	return nil
}

func (m *MockDApp) Received() []Received {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Received(nil), m.received...)
}
