package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/database"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/lock"
	"github.com/agep/exam-backend/internal/logger"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/repository"
	"github.com/agep/exam-backend/internal/service"
)

const seedStudentBase = 10000

// seed-exam creates a demo exam and, optionally, a batch of scored attempts
// so reports and exports have something to show.
//
//	seed-exam [author_id] [students]
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	authorID := argInt(1, 1)
	students := argInt(2, 30)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	// Seeding runs in one process, so the in-memory store is enough for the
	// submission locks and drafts.
	kv := kvstore.NewMemory()
	examService := service.NewExamService(examRepo, attemptRepo, log)
	drafts := service.NewDraftService(kv, cfg.DraftTTL, log)
	submissions := service.NewSubmissionService(examRepo, attemptRepo, lock.NewManager(kv), drafts, nil, nil, cfg.SubmitLockTTL, log)

	author := service.Identity{UserID: authorID, Roles: []string{service.RoleInstructor}}
	exam, err := examService.Create(ctx, author, demoExam())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo exam")
	}
	fmt.Printf("Created exam %q with ID: %s\n", exam.Title, exam.ID)

	rng := rand.New(rand.NewPCG(uint64(authorID), uint64(students)))
	letters := append([]string{model.BlankAnswer}, model.ChoiceLetters[:4]...)

	successCount := 0
	for i := 0; i < students; i++ {
		answers := make(map[string]any, len(exam.Questions))
		for q := range exam.Questions {
			// Bias towards the key so the histogram is not flat.
			if rng.IntN(3) > 0 {
				answers[strconv.Itoa(q)] = exam.Questions[q].CorrectChoice
				continue
			}
			answers[strconv.Itoa(q)] = letters[rng.IntN(len(letters))]
		}

		student := service.Identity{UserID: seedStudentBase + i, Roles: []string{service.RoleStudent, "grade-10"}}
		if _, err := submissions.Submit(ctx, student, exam.ID, answers); err != nil {
			fmt.Printf("Error submitting for student %d: %v\n", student.UserID, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Submitted %d attempts...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Recorded %d/%d attempts.\n", successCount, students)
}

func argInt(pos, fallback int) int {
	if len(os.Args) <= pos {
		return fallback
	}
	n, err := strconv.Atoi(os.Args[pos])
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func demoExam() *model.SaveExamRequest {
	q := func(section, text, a, b, c, d, key, why string) model.SaveQuestionRequest {
		return model.SaveQuestionRequest{
			Text:          text,
			Choices:       model.Choices{A: a, B: b, C: c, D: d},
			CorrectChoice: key,
			Explanation:   why,
			SectionTitle:  section,
		}
	}

	return &model.SaveExamRequest{
		Title:           "General Science Practice",
		Description:     "Ten questions, net scoring. Each wrong answer costs a quarter point.",
		DurationMinutes: 30,
		ScoringMethod:   string(model.ScoringNet),
		TargetRoles:     []string{"grade-10"},
		Questions: []model.SaveQuestionRequest{
			q("Physics", "What is the unit of force?", "Joule", "Newton", "Watt", "Pascal", "b", "Force is measured in newtons."),
			q("", "Which travels fastest in a vacuum?", "Sound", "Light", "Water waves", "Heat by conduction", "b", "Light travels at about 300,000 km/s."),
			q("", "What does a thermometer measure?", "Pressure", "Mass", "Temperature", "Volume", "c", ""),
			q("", "Which is a conductor?", "Rubber", "Glass", "Copper", "Wood", "c", "Metals like copper conduct electricity."),
			q("Chemistry", "What is the chemical symbol for water?", "H2O", "CO2", "O2", "NaCl", "a", ""),
			q("", "What is the pH of pure water?", "1", "7", "10", "14", "b", "Pure water is neutral."),
			q("", "Which gas do plants absorb?", "Oxygen", "Nitrogen", "Carbon dioxide", "Helium", "c", ""),
			q("Biology", "Which organ pumps blood?", "Lungs", "Liver", "Kidney", "Heart", "d", ""),
			q("", "How many legs does an insect have?", "Four", "Six", "Eight", "Ten", "b", "Insects have three pairs of legs."),
			q("", "Where does photosynthesis happen?", "Roots", "Chloroplasts", "Stem bark", "Flowers", "b", ""),
		},
	}
}
