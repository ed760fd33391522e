package registry

import (
	"context"
	"fmt"

	auditregistry "github.com/nspcc-dev/audit-registry/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

// NotificationSubscriber opens streams of contract notifications. Implemented
// by [rpcclient.WSClient].
type NotificationSubscriber interface {
	ReceiveExecutionNotifications(flt *neorpc.NotificationFilter, rcvr chan<- *state.ContainedNotificationEvent) (string, error)
	Unsubscribe(id string) error
}

// WatchPrm groups parameters of Watch.
type WatchPrm struct {
	// Writes malformed notifications into the log.
	Logger *zap.Logger

	// Subscriber to the Neo chain notifications.
	Subscriber NotificationSubscriber

	// Address of the registry contract.
	Contract util.Uint160

	// Called for every ContractSubmitted notification along with the hash of
	// the carrier transaction.
	Handler func(tx util.Uint256, ev *ContractSubmittedEvent)
}

// Watch subscribes to ContractSubmitted notifications of the registry
// contract and passes them to the handler until the context is done or the
// subscription channel is closed by the client.
func Watch(ctx context.Context, prm WatchPrm) error {
	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	name := auditregistry.ContractSubmittedEvent
	ch := make(chan *state.ContainedNotificationEvent)

	id, err := prm.Subscriber.ReceiveExecutionNotifications(&neorpc.NotificationFilter{
		Contract: &prm.Contract,
		Name:     &name,
	}, ch)
	if err != nil {
		return fmt.Errorf("subscribe to %s notifications: %w", name, err)
	}

	log.Info("subscribed to registry notifications",
		zap.Stringer("contract", prm.Contract), zap.String("subscription", id))

	for {
		select {
		case <-ctx.Done():
			unsubscribe(log, prm.Subscriber, id, ch)
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}

			if n.ScriptHash != prm.Contract || n.Name != name {
				continue
			}

			ev := new(ContractSubmittedEvent)
			if err := ev.FromStackItem(n.Item); err != nil {
				log.Warn("skip malformed notification",
					zap.Stringer("tx", n.Container), zap.Error(err))
				continue
			}

			prm.Handler(n.Container, ev)
		}
	}
}

// unsubscribe cancels the subscription. The receiver channel is drained until
// the client confirms unsubscription, otherwise the client blocks on sending
// notifications and never processes the response.
func unsubscribe(log *zap.Logger, sub NotificationSubscriber, id string, ch <-chan *state.ContainedNotificationEvent) {
	done := make(chan struct{})
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for {
			select {
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
			}
		}
	}()

	err := sub.Unsubscribe(id)
	close(done)
	<-drained

	if err != nil {
		log.Warn("failed to unsubscribe", zap.String("subscription", id), zap.Error(err))
	}
}
