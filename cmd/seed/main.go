package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/database"
	"github.com/falsumairi/ielts-sub001/internal/logger"
	"github.com/falsumairi/ielts-sub001/internal/model"
)

// Seeds one published reading test and one published listening test with
// play-once audio, enough to exercise the full attempt flow locally.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding sample tests ===")

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM tests").Scan(&count); err != nil {
		log.Fatal().Err(err).Msg("Failed to check existing tests")
	}
	if count > 0 {
		fmt.Printf("Found %d existing test(s), skipping seed\n", count)
		return
	}

	readingID := seedTest(ctx, pool, log, "Academic Reading Practice 1", model.TestModuleReading, 60)
	seedReadingContent(ctx, pool, log, readingID)

	listeningID := seedTest(ctx, pool, log, "Listening Practice 1", model.TestModuleListening, 30)
	seedListeningContent(ctx, pool, log, listeningID)

	fmt.Println("Done. Seeded 2 published tests.")
}

func seedTest(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, title string, module model.TestModule, minutes int) uuid.UUID {
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO tests (title, module, duration_minutes, passage_count, status)
		 VALUES ($1, $2, $3, $4, 'PUBLISHED')
		 RETURNING id`,
		title, module, minutes, 3,
	).Scan(&id)
	if err != nil {
		log.Fatal().Err(err).Str("title", title).Msg("Failed to insert test")
	}
	fmt.Printf("Created test %q (%s)\n", title, id)
	return id
}

func seedReadingContent(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, testID uuid.UUID) {
	number := 1
	for i := 1; i <= 3; i++ {
		passageID := insertPassage(ctx, pool, log, testID, i,
			fmt.Sprintf("Reading Passage %d", i),
			"Lorem ipsum passage body for local development.",
			nil, false)

		for j := 0; j < 4; j++ {
			opts, _ := json.Marshal([]string{"A", "B", "C", "D"})
			insertQuestion(ctx, pool, log, testID, passageID, number,
				model.QuestionTypeMultipleChoice,
				fmt.Sprintf("Question %d: choose the best answer.", number),
				opts, "A")
			number++
		}
	}
}

func seedListeningContent(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, testID uuid.UUID) {
	number := 1
	for i := 1; i <= 3; i++ {
		audioURL := fmt.Sprintf("https://cdn.example.com/listening/section%d.mp3", i)
		// Section 1 allows replays for practice; the rest are strict.
		passageID := insertPassage(ctx, pool, log, testID, i,
			fmt.Sprintf("Listening Section %d", i),
			"",
			&audioURL, i == 1)

		for j := 0; j < 3; j++ {
			insertQuestion(ctx, pool, log, testID, passageID, number,
				model.QuestionTypeFillBlank,
				fmt.Sprintf("Question %d: complete the sentence.", number),
				nil, "answer")
			number++
		}
	}
}

func insertPassage(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, testID uuid.UUID, index int, title, body string, audioURL *string, allowReplay bool) uuid.UUID {
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO passages (test_id, passage_index, title, body, audio_url, allow_replay)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		testID, index, title, body, audioURL, allowReplay,
	).Scan(&id)
	if err != nil {
		log.Fatal().Err(err).Str("title", title).Msg("Failed to insert passage")
	}
	return id
}

func insertQuestion(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, testID, passageID uuid.UUID, number int, qType model.QuestionType, prompt string, options []byte, answerKey string) {
	_, err := pool.Exec(ctx,
		`INSERT INTO questions (test_id, passage_id, number, type, prompt, options, answer_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		testID, passageID, number, qType, prompt, options, answerKey,
	)
	if err != nil {
		log.Fatal().Err(err).Int("number", number).Msg("Failed to insert question")
	}
}
