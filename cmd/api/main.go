package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/afrantzeskakis/convive-3-sub004/internal/db"
	"github.com/afrantzeskakis/convive-3-sub004/internal/llm"
	"github.com/afrantzeskakis/convive-3-sub004/internal/storage"
	"github.com/afrantzeskakis/convive-3-sub004/internal/wine"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	resultTTL     = 30 * time.Minute
)

func main() {

	// ───────────────────────── ENV ─────────────────────────
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	required := []string{
		"DATABASE_URL",
	}

	for _, k := range required {
		if os.Getenv(k) == "" {
			log.Fatalf("❌ Missing env var: %s", k)
		}
	}

	// Without the key the server still boots: reads work, mutating
	// endpoints answer 503 instead of silently degrading.
	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Println("⚠️  OPENAI_API_KEY not set, ingestion and analysis will return 503")
	}

	// ───────────────────────── DB ─────────────────────────
	pgDB := db.ConnectPostgres()
	defer pgDB.Close()

	// ───────────────────────── GIN ─────────────────────────
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// ───────────────────────── STORAGE (OPTIONAL) ─────────────────────────
	var archiver wine.Archiver
	if storage.Enabled() {
		r2Client, err := storage.NewR2Client(context.Background())
		if err != nil {
			log.Fatal("❌ R2 init failed:", err)
		}
		archiver = r2Client
	} else {
		log.Println("R2 env not set, uploaded wine lists will not be archived")
	}

	// ───────────────────────── INGESTION ENGINE ─────────────────────────
	wineRepo := wine.NewPostgresRepository(pgDB)
	llmClient := llm.NewOpenAIClient()

	// one token bucket for ALL extraction calls, shared across
	// concurrent ingestion runs
	limiter := rate.NewLimiter(rate.Limit(extractRPS()), 5)
	extractor := wine.NewExtractor(llmClient, limiter, false)

	tracker := wine.NewTracker()
	stop := make(chan struct{})
	defer close(stop)
	go tracker.RunSweeper(stop, sweepInterval, resultTTL)

	wineService := wine.NewService(wineRepo, extractor, tracker)
	wineHandler := wine.NewHandler(wineService, archiver)

	// ───────────────────────── WINE LIST ROUTES ─────────────────────────
	wineLists := r.Group("/wine-lists")
	{
		wineLists.POST("", wineHandler.StartIngestion)
		wineLists.GET("/:handle/progress", wineHandler.GetProgress)
		wineLists.GET("/:handle/result", wineHandler.GetResult)
		wineLists.DELETE("/:handle", wineHandler.Cancel)
	}

	// ───────────────────────── WINE ROUTES ─────────────────────────
	wines := r.Group("/wines")
	{
		wines.GET("", wineHandler.ListWines)
		wines.GET("/:id", wineHandler.GetWine)
		wines.POST("/analyze", wineHandler.Analyze)
	}

	// ───────────────────────── HEALTH ─────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ───────────────────────── START ─────────────────────────
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Printf("🚀 API running at http://localhost:%s", port)
	r.Run(":" + port)
}

// extractRPS reads the process-wide extraction rate, default 5/s.
func extractRPS() float64 {
	raw := os.Getenv("WINE_EXTRACT_RPS")
	if raw == "" {
		return 5
	}
	rps, err := strconv.ParseFloat(raw, 64)
	if err != nil || rps <= 0 {
		log.Printf("⚠️  Invalid WINE_EXTRACT_RPS %q, using default 5", raw)
		return 5
	}
	return rps
}
