// Standalone mock poll source for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mocksource
//
// Then in another terminal:
//
//	go run ./cmd/votewatch serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	flag.Parse()

	fmt.Printf("Mock poll source starting on %s\n", *addr)
	fmt.Println("GET /poll returns a choices payload with growing counts")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	labels := []string{
		"Serena Villata: Informatique",
		"François Hug: Biologie",
		"Cornelia Meinert: Physique",
		"Pr Gauci: Médecine",
		"Jean-Baptiste Caillau: Mathématiques",
		"Lise Arena: Économie",
		"Cédric Richard: Traitement du signal",
		"Agnès Festré: Économie",
	}

	var (
		mu     sync.Mutex
		counts = make([]int, len(labels))
	)

	http.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		choices := make([]map[string]any, len(labels))
		for i, label := range labels {
			counts[i] += rand.Intn(4)
			choices[i] = map[string]any{
				"value":      label,
				"statistics": map[string]any{"opinions": counts[i]},
			}
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": choices})
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
