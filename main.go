package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/campus-errands/modules/api"
	"github.com/example/campus-errands/modules/cache"
	"github.com/example/campus-errands/modules/chat"
	"github.com/example/campus-errands/modules/realtime"
	"github.com/example/campus-errands/modules/review"
	"github.com/example/campus-errands/modules/tasks"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Campus Errands - Task Lifecycle Coordination ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	tasksModule := tasks.NewModule()
	chatModule := chat.NewModule()
	realtimeModule := realtime.NewModule()
	reviewModule := review.NewModule()
	apiModule := api.NewModule()

	// The hub is shared in-process state, not a service, so it is wired
	// by hand.
	apiModule.SetHub(realtimeModule.GetHub())

	// Register order: core domain first, then consumers, then the
	// driving adapter.
	app.Register(tasksModule)
	app.Register(chatModule)
	app.Register(realtimeModule)
	app.Register(reviewModule)

	// The listing cache is optional; without Redis the tasks module
	// reads straight from the database.
	var cacheModule *cache.Module
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cacheModule = cache.NewModule(redisAddr)
		app.Register(cacheModule)
	}

	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if cacheModule != nil {
		tasksModule.SetCache(cacheModule.GetCache())
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  POST   /api/v1/auth/token           - Issue a development token")
	log.Println("  POST   /api/v1/tasks                - Post a task")
	log.Println("  GET    /api/v1/tasks/open           - Browse open tasks")
	log.Println("  GET    /api/v1/tasks/mine           - Tasks you posted")
	log.Println("  GET    /api/v1/tasks/accepted       - Tasks you run")
	log.Println("  GET    /api/v1/tasks/:id            - Task details")
	log.Println("  GET    /api/v1/tasks/:id/history    - Status timeline")
	log.Println("  POST   /api/v1/tasks/:id/accept     - Accept a task")
	log.Println("  POST   /api/v1/tasks/:id/status     - Advance task status")
	log.Println("  POST   /api/v1/tasks/:id/cancel     - Cancel a task")
	log.Println("  GET    /api/v1/tasks/:id/room       - Task's chat room")
	log.Println("  GET    /api/v1/tasks/:id/review     - Review eligibility")
	log.Println("  POST   /api/v1/rooms/:id/messages   - Send a message")
	log.Println("  GET    /api/v1/rooms/:id/messages   - Read messages")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws?token=<jwt>):", port)
	log.Println("  Frames: {\"action\":\"subscribe\",\"subject\":\"task.<id>|room.<id>|tasks.open\"}")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
