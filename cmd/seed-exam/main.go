// Command seed-exam creates a demo exam that opens now, with registered
// students, so the proctoring flow can be tried end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
}

func main() {
	students := flag.Int("students", len(names), "number of students to register")
	perSubject := flag.Int("questions", 5, "questions per subject")
	duration := flag.Int("duration", 60, "exam duration in minutes")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	examID := uuid.New()
	start := time.Now().Truncate(time.Minute)

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO exams (id, title, duration_minutes, start_time, end_time) VALUES ($1, $2, $3, $4, $5)`,
		examID, "Ujian Coba Proktor", *duration, start, start.Add(time.Duration(*duration)*time.Minute),
	)

	options, _ := json.Marshal([]string{"A", "B", "C", "D"})
	difficulties := []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}
	for si, subject := range []string{"Matematika", "Fisika"} {
		subjectID := uuid.New()
		batch.Queue(
			`INSERT INTO exam_subjects (id, exam_id, name, order_num) VALUES ($1, $2, $3, $4)`,
			subjectID, examID, subject, si,
		)
		for qi := 0; qi < *perSubject; qi++ {
			batch.Queue(
				`INSERT INTO questions (id, subject_id, question_text, options, correct_option, marks, negative_marks, difficulty, order_num)
				 VALUES ($1, $2, $3, $4, $5, 4, 1, $6, $7)`,
				uuid.New(), subjectID, fmt.Sprintf("%s soal %d", subject, qi+1), options,
				qi%4, string(difficulties[qi%len(difficulties)]), qi,
			)
		}
	}

	for i := 0; i < *students; i++ {
		name := names[i%len(names)]
		batch.Queue(
			`WITH s AS (
			     INSERT INTO students (nisn, name) VALUES ($1, $2)
			     ON CONFLICT (nisn) DO UPDATE SET name = EXCLUDED.name
			     RETURNING id
			 )
			 INSERT INTO exam_registrations (exam_id, student_id, allowed)
			 SELECT $3, id, TRUE FROM s`,
			fmt.Sprintf("user%d", i+1), name, examID,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exam")
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit seed")
	}

	fmt.Printf("Seeded exam %s with %d questions and %d registered students.\n", examID, 2*(*perSubject), *students)
	fmt.Println("Issue a student token with: go run ./cmd/issue-token -type student -user <id>")
}
