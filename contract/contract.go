//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"context"
	"github.com/google/uuid"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, so workers don't carry a name of their own.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Close codes understood by every transport. Values follow RFC 6455.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseUnsupportedData = 1003
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// Stream is the transport side of a live connection.
// Send must honor ctx so that a slow peer cannot stall a broadcast.
// Close must be idempotent.
type Stream interface {
	ID() string
	Send(ctx context.Context, payload any) error
	Receive(ctx context.Context) (chat.InboundEvent, error)
	Close(code int, reason string) error
}

// Connection is a handle held by the registry: an authenticated stream.
type Connection interface {
	ID() string
	UserID() uuid.UUID
	Send(ctx context.Context, payload any) error
	Close(code int, reason string) error
}

type IRegistry interface {
	Connect(sessionID uuid.UUID, conn Connection)
	Disconnect(sessionID uuid.UUID, conn Connection) bool
	Broadcast(sessionID uuid.UUID, payload any) int
	DisconnectUser(sessionID, userID uuid.UUID) int
	DisconnectSession(sessionID uuid.UUID) int
	Count(sessionID uuid.UUID) int
}
