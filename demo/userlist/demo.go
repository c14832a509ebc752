// FILE: main.go
// This demo walks through the user list against the live randomuser API:
// refresh, infinite scroll, tab and layout switches, and a delete.

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/internal/clients"
	"github.com/illmade-knight/random-user/internal/render"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
)

func main() {
	pages := flag.Int("pages", 2, "how many pages to load")
	results := flag.Int("results", 9, "users per page")
	flag.Parse()

	log.Println("--- Starting User List Demo ---")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 1. Initialize the client, an in-memory store and the app
	client := clients.NewRandomUserClient(clients.DefaultBaseURL, clients.DefaultSeed, clients.DefaultTimeout, zerolog.Nop())
	a := app.New(client, users.NewInMemoryStore(), zerolog.Nop(), app.Options{ResultsPerPage: *results})
	renderer := render.New()
	show := func() {
		st, err := a.State(ctx)
		if err != nil {
			log.Fatalf("state: %v", err)
		}
		if err := renderer.Render(os.Stdout, st); err != nil {
			log.Fatalf("render: %v", err)
		}
	}

	// 2. Load pages
	log.Println("\n--- Refresh ---")
	if err := a.Refresh(ctx); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	for i := 1; i < *pages; i++ {
		log.Println("\n--- Fetch more ---")
		if err := a.FetchMore(ctx); err != nil {
			log.Printf("fetch more failed, keeping what we have: %v", err)
		}
	}
	show()

	// 3. Switch tab and layout
	log.Println("\n--- Female tab, list layout ---")
	_ = a.SelectTab(ctx, users.GenderFemale)
	_ = a.SelectLayout(ctx, app.LayoutList)
	show()

	// 4. Delete the first two users of the active tab
	log.Println("\n--- Delete mode ---")
	_ = a.SetMode(ctx, app.ModeDelete)
	st, _ := a.State(ctx)
	for i, u := range st.Active() {
		if i == 2 {
			break
		}
		_ = a.ToggleSelect(ctx, u.ID)
	}
	show()

	removed, err := a.ConfirmDelete(ctx)
	if err != nil {
		log.Fatalf("delete: %v", err)
	}
	log.Printf("✅ Removed %d users.", removed)
	_ = a.SetMode(ctx, app.ModeBrowse)
	show()

	log.Println("\n--- Demo Complete ---")
}
