package main

import (
	"context"
	"sync"

	"github.com/Akash1430/POCPortal/internal/audit"
	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/influxdb"
	"github.com/Akash1430/POCPortal/internal/infrastructure/logging"
	"github.com/Akash1430/POCPortal/internal/infrastructure/metrics"
	"github.com/Akash1430/POCPortal/internal/infrastructure/mqtt"
)

// defaultPublishQueue bounds the events waiting for the MQTT broker.
const defaultPublishQueue = 256

// observerSet holds every security event sink. Nil sinks are skipped.
type observerSet struct {
	recorder  *audit.Recorder
	publisher *eventPublisher
	influx    authEventWriter
	collector *metrics.Metrics
	logger    *logging.Logger
}

// observers returns the fan-out handed to the engine. Audit comes first so
// a full publish queue never costs an audit entry.
func (s observerSet) observers() auth.Observers {
	var obs auth.Observers
	if s.recorder != nil {
		obs = append(obs, s.recorder)
	}
	if s.collector != nil {
		obs = append(obs, s.collector)
	}
	if s.influx != nil {
		obs = append(obs, influxObserver(s.influx))
	}
	if s.publisher != nil {
		obs = append(obs, s.publisher)
	}
	if s.logger != nil {
		obs = append(obs, logObserver(s.logger))
	}
	return obs
}

// start launches the drain goroutines. The returned function stops them
// and waits until everything buffered has been written.
func (s observerSet) start() func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if s.recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.recorder.Run(ctx)
		}()
	}
	if s.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.publisher.Run(ctx)
		}()
	}

	return func() {
		cancel()
		wg.Wait()
	}
}

// jsonPublisher is the subset of *mqtt.Client the event publisher needs.
type jsonPublisher interface {
	PublishJSON(topic string, v any) error
}

// eventPublisher forwards security events to orgadmin/security/<type>.
// Publishing waits on the broker, so events are queued and sent from Run.
type eventPublisher struct {
	client jsonPublisher
	logger *logging.Logger
	ch     chan auth.Event
}

func newEventPublisher(client jsonPublisher, logger *logging.Logger, size int) *eventPublisher {
	if size <= 0 {
		size = defaultPublishQueue
	}
	return &eventPublisher{
		client: client,
		logger: logger,
		ch:     make(chan auth.Event, size),
	}
}

// OnSecurityEvent queues ev, dropping it when the queue is full.
func (p *eventPublisher) OnSecurityEvent(_ context.Context, ev auth.Event) {
	select {
	case p.ch <- ev:
	default:
		p.logger.Warn("security event queue full, dropping MQTT publish", "type", ev.Type)
	}
}

// Run publishes queued events until ctx is cancelled, then drains the queue.
func (p *eventPublisher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-p.ch:
			p.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.ch:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *eventPublisher) publish(ev auth.Event) {
	topic := mqtt.Topics{}.SecurityEvent(string(ev.Type))
	if err := p.client.PublishJSON(topic, ev); err != nil {
		p.logger.Warn("publishing security event", "topic", topic, "error", err)
	}
}

// authEventWriter is the subset of *influxdb.Client used for events.
type authEventWriter interface {
	WriteAuthEvent(ev influxdb.AuthEvent)
}

// influxObserver writes every event as an auth_events point. The InfluxDB
// write API batches in the background, so this never blocks.
func influxObserver(w authEventWriter) auth.Observer {
	return auth.ObserverFunc(func(_ context.Context, ev auth.Event) {
		w.WriteAuthEvent(influxdb.AuthEvent{
			Type:      string(ev.Type),
			Outcome:   ev.Outcome,
			RoleCode:  string(ev.RoleCode),
			AccountID: ev.AccountID,
			ActorID:   ev.ActorID,
			Count:     int(ev.Count),
			At:        ev.At,
		})
	})
}

// logObserver logs failures at warn and everything else at debug.
func logObserver(log *logging.Logger) auth.Observer {
	return auth.ObserverFunc(func(_ context.Context, ev auth.Event) {
		level := log.Debug
		if ev.Outcome == auth.OutcomeFailure {
			level = log.Warn
		}
		level("security event",
			"type", ev.Type,
			"outcome", ev.Outcome,
			"account_id", ev.AccountID,
			"actor_id", ev.ActorID,
			"reason", ev.Reason,
		)
	})
}
