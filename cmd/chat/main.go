package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/kxddry/wikirag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", defaultAPIURL(), "Query API endpoint")
	topK := flag.Int("top-k", 5, "Number of retrieved documents")
	flag.Parse()

	client := tui.NewStreamClient(*apiURL)
	m := tui.New(client, *topK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

func defaultAPIURL() string {
	if v := os.Getenv("APP_API_URL"); v != "" {
		return v
	}
	return "http://localhost:8000/query"
}
