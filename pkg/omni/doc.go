// Package omni provides an embeddable structured logging pipeline.
//
// A Provider owns a bounded log buffer and a composed set of sinks, and
// hands out Logger views per category. Entries carry a rendered message,
// structured state taken from the message template, the ambient scopes of
// the calling flow and correlation data from the context.
//
// Key Features:
//
//   - Scopes carried in context.Context, isolated per flow
//   - Message templates with named placeholders ("Order {OrderID} shipped")
//   - Batched delivery with DropOldest, DropNewest or Block overflow
//   - Fan-out to several sinks with per-sink failure isolation
//   - Degradation tracking and stderr fallback for sinks that fail to open
//   - Health reports evaluated on demand or by a background monitor
//   - Prometheus metrics for buffer, sinks and log volume
//
// Basic Usage:
//
//	provider, err := omni.NewProvider(
//		omni.WithSinkURI("app", "/var/log/app.log", "json"),
//		omni.WithSinkURI("console", "stderr", "text"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer provider.Close()
//
//	logger, _ := provider.CreateLogger("checkout")
//	logger.Info(ctx, "Processing order {OrderID}", orderID)
//
// Scopes:
//
//	ctx, h := logger.BeginScope(ctx, map[string]interface{}{"request_id": id})
//	defer h.Release()
//	logger.Warn(ctx, "Payment retry {Attempt}", attempt)
//
// Sink URIs:
//
//	stdout, stderr                     console
//	/var/log/app.log, file:///path     file, ?compress=gzip
//	syslog://host:514?tag=app          syslog, syslog:///dev/log for a socket
//	nats://host:4222/logs.app          NATS subject logs.app
//	memory://?limit=100                in-memory, for tests
//
// Lifecycle:
//
// A provider starts Created, becomes Operational with the first
// CreateLogger call and moves through Stopping and Disposing to Disposed on
// Close. Close drains the buffer before any sink is closed. Logging outside
// the Operational state is silently ignored; CreateLogger after Close fails
// with ErrObjectDisposed.
//
// Configuration:
//
// LoadConfig reads TOML or YAML files:
//
//	batch_size = 200
//	flush_interval = "500ms"
//	overflow_policy = "block"
//
//	[[sinks]]
//	name = "app"
//	uri = "${LOG_DIR}/app.log"
//	format = "json"
package omni
