package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"miblog/accounts"
	"miblog/blog"
	"miblog/cache"
	"miblog/common"
	"miblog/database"
	"miblog/email"
	"miblog/feed"
	"miblog/notify"
	"miblog/social"
	"miblog/subscriptions"
)

func main() {
	runDigest := flag.Bool("digest", false, "send subscription digest emails and exit")
	digestHours := flag.Int("hours", 24, "digest lookback window in hours")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	notifier := notify.NewNotifier(db)
	subscriptionsModule := subscriptions.NewSubscriptionsModule(db, email.NewSMTPMailer())

	// batch mode: the digest job is scheduled externally (cron), it must not
	// overlap with itself
	if *runDigest {
		sent, err := subscriptionsModule.RunDigest(*digestHours)
		if err != nil {
			log.Fatal("Digest run failed:", err)
		}
		log.Printf("Digest run complete, %d emails sent", sent)
		return
	}

	// drop stale cached feed documents left over from previous runs
	if err := cache.ClearOldCache(24 * time.Hour); err != nil {
		log.Printf("Error sweeping cache: %v", err)
	}

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("miblog-session", store))

	router.SetFuncMap(map[string]interface{}{
		"now": func() time.Time {
			return time.Now()
		},
		"domain": common.Domain,
	})

	router.LoadHTMLGlob("views/*.html")

	router.Static("/public", "./public")

	accountsModule := accounts.NewAccountsModule(db)
	accountsModule.RegisterRoutes(router)

	blogModule := blog.NewBlogModule(db, notifier)
	blogModule.RegisterRoutes(router)

	socialModule := social.NewSocialModule(db, notifier)
	socialModule.RegisterRoutes(router)

	notificationsModule := notify.NewNotificationsModule(db)
	notificationsModule.RegisterRoutes(router)

	subscriptionsModule.RegisterRoutes(router)

	feedModule := feed.NewFeedModule(db)
	feedModule.RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
