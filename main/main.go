package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"chathub/auth"
	"chathub/db"
	"chathub/main/routes"
	"chathub/retention"
	"chathub/types"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

// seedBootstrapAdmin creates the first admin account on an empty database.
func seedBootstrapAdmin(users *auth.Users) error {
	count, err := users.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD must be set on first startup")
	}

	user, err := users.Create(username, password, types.RoleAdmin)
	if err != nil {
		return err
	}
	log.Printf("Seeded bootstrap admin %q (id %d)", user.Username, user.ID)
	return nil
}

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	dbName := os.Getenv("DB_FILE")
	if dbName == "" {
		dbName = "./chathub.db"
	}
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./static"
	}

	conn, err := db.InitSQLite(dbName)
	if err != nil {
		log.Fatal("Error opening database:", err)
	}
	defer db.CloseDB(conn)
	if err := db.EnsureSchema(conn); err != nil {
		log.Fatal("Error ensuring schema:", err)
	}

	app := routes.NewApp(conn, staticDir)

	if err := seedBootstrapAdmin(app.Users); err != nil {
		log.Fatal("Error seeding admin account:", err)
	}

	r := gin.Default()

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 100})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	routes.Setup(r, app)

	sweeper := &retention.Sweeper{
		Channels: app.Channels,
		Files:    app.Files,
		MaxAge:   retention.DefaultMaxAge,
		Interval: retention.DefaultInterval,
	}
	if err := sweeper.Start(); err != nil {
		log.Fatal("Error starting retention sweeper:", err)
	}
	defer sweeper.Stop()

	server := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("Starting chathub on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down chathub...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("chathub forced shutdown: %v", err)
	}
}
