// seed inserts dev fixtures into the local database: a pool of contacts
// (including suppressed and unsubscribed ones that must never receive
// mail), a broadcast program with an approved version, and a two-step
// welcome automation.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coursekit/mailsched/internal/infrastructure/postgres"
)

type contactSpec struct {
	email        string
	source       string
	lastCampaign string
	suppressed   bool
	unsubscribed bool
	bounced      bool
}

var contacts = []contactSpec{
	// Eligible
	{email: "alice@test.local", source: "signup", lastCampaign: "welcome-2026"},
	{email: "bob@test.local", source: "signup"},
	{email: "carol@test.local", source: "import", lastCampaign: "spring-sale"},
	{email: "dave@test.local", source: "import"},
	{email: "erin@test.local", source: "signup", lastCampaign: "spring-sale"},

	// Must never receive mail
	{email: "suppressed@test.local", source: "signup", suppressed: true},
	{email: "unsubscribed@test.local", source: "import", unsubscribed: true},
	{email: "bounced@test.local", source: "signup", bounced: true},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var inserted, skipped int
	for _, c := range contacts {
		tag, err := pool.Exec(ctx, `
			INSERT INTO contacts (email, source, last_campaign, suppressed, unsubscribed, bounced)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (email) DO NOTHING`,
			c.email, c.source, c.lastCampaign, c.suppressed, c.unsubscribed, c.bounced)
		if err != nil {
			log.Fatalf("insert contact %s: %v", c.email, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		} else {
			inserted++
		}
	}

	// Broadcast program due in ~1 minute, with an approved version.
	nextRunAt := time.Now().Add(time.Minute)

	var programID string
	err = pool.QueryRow(ctx, `
		INSERT INTO programs (name, kind, status, schedule_text, timezone, audience_type, next_run_at)
		VALUES ('seed weekly digest', 'broadcast', 'active', 'every monday at 9am', 'UTC', 'all', $1)
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		nextRunAt,
	).Scan(&programID)
	if err != nil {
		log.Fatalf("upsert program: %v", err)
	}

	var versionID string
	err = pool.QueryRow(ctx, `
		INSERT INTO versions (program_id, subject, html_body, preview_text, status)
		VALUES ($1, 'Your weekly digest', '<p>Hello!</p><p><a href="{{unsubscribe_url}}">Unsubscribe</a></p>', 'This week at a glance', 'approved')
		RETURNING id`,
		programID,
	).Scan(&versionID)
	if err != nil {
		log.Fatalf("insert version: %v", err)
	}

	if _, err = pool.Exec(ctx,
		`UPDATE programs SET current_version_id = $2, updated_at = NOW() WHERE id = $1`,
		programID, versionID); err != nil {
		log.Fatalf("point program at version: %v", err)
	}

	// Two-step welcome automation: immediate hello, follow-up after 3 days.
	var automationID string
	err = pool.QueryRow(ctx, `
		INSERT INTO automations (name, status)
		VALUES ('seed welcome series', 'active')
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
	).Scan(&automationID)
	if err != nil {
		log.Fatalf("upsert automation: %v", err)
	}

	steps := []struct {
		order   int
		delay   int
		unit    string
		subject string
		body    string
	}{
		{0, 0, "days", "Welcome aboard", "<p>Glad you are here.</p>"},
		{1, 3, "days", "Getting the most out of your course", "<p>A few tips to get going.</p>"},
	}
	for _, s := range steps {
		if _, err = pool.Exec(ctx, `
			INSERT INTO steps (automation_id, step_order, delay_value, delay_unit, subject, html_body, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'active')
			ON CONFLICT (automation_id, step_order) DO NOTHING`,
			automationID, s.order, s.delay, s.unit, s.subject, s.body); err != nil {
			log.Fatalf("insert step %d: %v", s.order, err)
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Contacts:   %d inserted, %d already present\n", inserted, skipped)
	fmt.Printf("  Program:    %s (fires %s)\n", programID, nextRunAt.Format(time.RFC3339))
	fmt.Printf("  Version:    %s (approved)\n", versionID)
	fmt.Printf("  Automation: %s (2 steps)\n", automationID)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Enroll a recipient into the welcome series:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/automations/%s/enroll \\\n", automationID)
	fmt.Println("      -H 'Content-Type: application/json' \\")
	fmt.Println("      -d '{\"email\":\"alice@test.local\"}'")
	fmt.Println()
	fmt.Println("  Fire due work without waiting for the daemon:")
	fmt.Println()
	fmt.Println("    curl -s -X POST http://localhost:8080/internal/run/programs")
	fmt.Println("    curl -s -X POST http://localhost:8080/internal/run/automations")
}
