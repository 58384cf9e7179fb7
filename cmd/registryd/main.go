// Command registryd wires together the registry engine and its health
// supervisor and runs them until terminated. It deliberately does not
// implement an HTTP surface — request routing, auth header parsing, and
// response envelopes are external collaborators outside this module; an
// HTTP front end would call into registry.Engine exactly as this command
// does.
//
// Grounded on core/cmd/example/main.go's shape: construct, wire optional
// collaborators, start, block.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpal91/microservice-service-registry/registry"
)

func main() {
	cfg, err := registry.NewConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := registry.NewLogger(cfg.Logging, "registry")

	engine, err := registry.NewEngine(cfg.RegistrationKey, registry.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to start registry engine: %v", err)
	}

	engine.Subscribe(registry.EventInstanceRegistered, func(ev registry.Event) {
		logger.Info("instance registered", map[string]interface{}{
			"instance_id":  ev.Instance.ID,
			"service_type": ev.Instance.ServiceType,
		})
	})
	engine.Subscribe(registry.EventInstanceRemoved, func(ev registry.Event) {
		logger.Info("instance removed", map[string]interface{}{"instance_id": ev.Instance.ID})
	})

	supervisor := registry.NewSupervisor(engine, cfg.Health, registry.WithSupervisorLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor.Start(ctx)
	logger.Info("registry engine started", map[string]interface{}{"namespace": cfg.Namespace})

	<-ctx.Done()

	logger.Info("shutting down", nil)
	supervisor.Stop()
	engine.Dispose()
}
