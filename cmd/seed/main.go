// Command seed fills a development database with members and their books.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"booklend/internal/config"
	"booklend/internal/logging"
)

type seedProfile struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
}

type seedBook struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Title         string
	Authors       []string
	Publisher     string
	PublishedYear int
	CreatedAt     time.Time
}

var (
	titles = []string{
		"Dune", "The Left Hand of Darkness", "Pachinko", "The Vegetarian", "Human Acts",
		"Almond", "Kim Jiyoung, Born 1982", "The Remains of the Day", "Neuromancer", "Piranesi",
		"채식주의자", "소년이 온다", "아몬드", "82년생 김지영", "불편한 편의점",
	}
	authors = []string{
		"Frank Herbert", "Ursula K. Le Guin", "Min Jin Lee", "Han Kang", "Sohn Won-pyung",
		"Cho Nam-joo", "Kazuo Ishiguro", "William Gibson", "Susanna Clarke", "Kim Ho-yeon",
	}
	publishers = []string{"Penguin", "Hogarth", "Grand Central", "Chip Kidd Books", "Changbi", "Minumsa"}
	names      = []string{"Mina", "Joon", "Seo-yeon", "Alex", "Priya", "Haru", "Dana", "Jae"}
)

func main() {
	members := 20
	if v := os.Getenv("SEED_MEMBERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logging.Fatal().Str("SEED_MEMBERS", v).Msg("must be a positive integer")
		}
		members = n
	}

	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}
	logging.Init(cfg.Logging)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()

	profiles, books := generate(members, 5, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now().UTC())
	if err := insert(ctx, pool, profiles, books); err != nil {
		logging.Fatal().Err(err).Msg("seed database")
	}

	var total int
	_ = pool.QueryRow(ctx, "SELECT COUNT(*) FROM books").Scan(&total)
	logging.Info().Int("profiles", len(profiles)).Int("books", len(books)).Int("total_books", total).Msg("seed complete")
}

// generate creates members with up to maxBooks books each.
func generate(members, maxBooks int, rng *rand.Rand, now time.Time) ([]seedProfile, []seedBook) {
	profiles := make([]seedProfile, 0, members)
	var books []seedBook
	for i := 0; i < members; i++ {
		p := seedProfile{
			ID:          uuid.New(),
			DisplayName: fmt.Sprintf("%s %d", names[rng.Intn(len(names))], i+1),
			Email:       fmt.Sprintf("member%d@booklend.test", i+1),
		}
		profiles = append(profiles, p)

		for j := 0; j < 1+rng.Intn(maxBooks); j++ {
			books = append(books, seedBook{
				ID:            uuid.New(),
				OwnerID:       p.ID,
				Title:         titles[rng.Intn(len(titles))],
				Authors:       []string{authors[rng.Intn(len(authors))]},
				Publisher:     publishers[rng.Intn(len(publishers))],
				PublishedYear: 1960 + rng.Intn(65),
				CreatedAt:     now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour),
			})
		}
	}
	return profiles, books
}

func insert(ctx context.Context, pool *pgxpool.Pool, profiles []seedProfile, books []seedBook) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"profiles"}, []string{"id", "display_name", "email"},
			pgx.CopyFromSlice(len(profiles), func(i int) ([]any, error) {
				p := profiles[i]
				return []any{p.ID, p.DisplayName, p.Email}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy profiles: %w", err)
		}

		_, err = tx.CopyFrom(ctx, pgx.Identifier{"books"},
			[]string{"id", "owner_id", "title", "authors", "publisher", "published_year", "created_at"},
			pgx.CopyFromSlice(len(books), func(i int) ([]any, error) {
				b := books[i]
				return []any{b.ID, b.OwnerID, b.Title, b.Authors, b.Publisher, b.PublishedYear, b.CreatedAt}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy books: %w", err)
		}
		return nil
	})
}
