// Package app boots the store. It opens the connections, wires the
// services with their jobs and event listeners, and builds the HTTP
// handler and the scheduler. Commands and the server share one App.
//
//	a, err := app.Boot(ctx)
//	if err != nil { ... }
//	defer a.Close()
//	http.ListenAndServe(":8080", a.Handler())
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/integrations/mindicador"
	"github.com/shashiranjanraj/ferremas/app/integrations/webpay"
	"github.com/shashiranjanraj/ferremas/app/jobs"
	"github.com/shashiranjanraj/ferremas/app/listeners"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/cache"
	"github.com/shashiranjanraj/ferremas/pkg/database"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/mail"
	"github.com/shashiranjanraj/ferremas/pkg/notification"
	"github.com/shashiranjanraj/ferremas/pkg/queue"
	"github.com/shashiranjanraj/ferremas/pkg/schedule"
	"github.com/shashiranjanraj/ferremas/pkg/storage"
	"github.com/shashiranjanraj/ferremas/pkg/ws"
)

// App holds everything a running process needs.
type App struct {
	DB        *gorm.DB
	Services  *services.Services
	Queue     *queue.Manager
	Hub       *ws.Hub
	Scheduler *schedule.Scheduler
	Disk      storage.Disk

	closers []func()
}

// Boot loads configuration and wires the application. Redis and Kafka
// are optional: without Redis the cache is off and jobs stay in memory,
// without KAFKA_BROKERS events are not streamed.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{}
	if uri := config.MongoLogURI(); uri != "" {
		closeLog, err := logger.EnableMongo(uri, config.Get("LOG_MONGO_DB", "ferremas"), "logs")
		if err != nil {
			logger.Warn("app: mongo log sink disabled", "error", err)
		}
		a.closers = append(a.closers, closeLog)
	}

	if err := database.Connect(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.DB = database.DB
	a.closers = append(a.closers, func() { _ = database.Close() })

	if err := cache.Connect(ctx); err != nil {
		logger.Warn("app: redis unavailable, cache disabled", "error", err)
	} else {
		a.closers = append(a.closers, func() { _ = cache.Close() })
	}

	disk, err := storage.FromConfig(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.Disk = disk

	a.Services = services.New(services.Deps{
		DB:      a.DB,
		Gateway: webpay.FromConfig(),
		Rates:   mindicador.FromConfig(),
		Disk:    disk,
	})

	var driver queue.Driver = queue.NewMemoryDriver()
	if cache.RDB != nil {
		driver = queue.NewRedisDriver(cache.RDB)
	}
	a.Queue = queue.NewManager(driver)
	a.Queue.UseDB(a.DB)
	jobs.Register(a.Queue, a.Services.Inventory, mail.FromConfig())
	a.Services.Inventory.SetRetry(jobs.RepositionRetry(a.Queue))
	a.Services.Auth.SetMailer(jobs.Mailer(a.Queue))

	a.Hub = ws.NewHub()

	deps := listeners.Deps{
		DB:       a.DB,
		Hub:      a.Hub,
		Queue:    a.Queue,
		Alerts:   notification.FromConfig(),
		LowStock: config.Int("LOW_STOCK_THRESHOLD", 5),
	}
	if brokers := config.KafkaBrokers(); len(brokers) > 0 {
		stream := event.NewKafkaPublisher(brokers, config.KafkaTopic())
		deps.Stream = stream
		a.closers = append(a.closers, func() { _ = stream.Close() })
	}
	listeners.Register(event.Default, deps)

	a.Scheduler = Schedule(a.Services)
	return a, nil
}

// Close waits for in-flight listeners and releases connections in reverse
// order of opening.
func (a *App) Close() {
	event.Default.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Health reports whether the database answers.
func (a *App) Health(ctx context.Context) error {
	return database.Ping(ctx)
}

// Offline returns an App whose services have no connections. It is enough
// to build the router, e.g. for route:list.
func Offline() *App {
	return &App{Services: services.New(services.Deps{}), Hub: ws.NewHub()}
}
