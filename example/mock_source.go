package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// mockCandidates are the choice labels served by the mock poll source. The
// text after the colon and on later lines is dropped by name extraction.
var mockCandidates = []string{
	"Serena Villata: Informatique\nIntelligence artificielle et argumentation",
	"François Hug: Biologie",
	"Cornelia Meinert: Physique\nMatière condensée",
	"Pr Gauci: Médecine",
	"Jean-Baptiste Caillau: Mathématiques\nContrôle optimal",
	"Lise Arena: Économie",
	"Cédric Richard: Traitement du signal",
	"Agnès Festré: Économie\nHistoire de la pensée",
}

// StartMockPollSource runs a mock poll endpoint whose vote counts grow on
// every request. Every few requests one count is sent as a string to
// exercise coercion.
// Call this in a goroutine before creating the Watcher.
func StartMockPollSource(addr string) {
	var (
		mu       sync.Mutex
		counts   = make([]int, len(mockCandidates))
		requests int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		requests++
		choices := make([]map[string]any, len(mockCandidates))
		for i, label := range mockCandidates {
			counts[i] += rand.Intn(4)
			var opinions any = counts[i]
			if requests%5 == 0 && i == 0 {
				opinions = strconv.Itoa(counts[i])
			}
			choices[i] = map[string]any{
				"value":      label,
				"statistics": map[string]any{"opinions": opinions},
			}
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"choices": choices}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock source error", "error", err)
	}
}
