package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/passage"
	"github.com/poiesic/passage/ai/mock"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/ingest"
)

// Seed corpus for local experiments: one short document per entry.
var seeds = []string{
	"The lighthouse keeper logged every ship that passed the headland, noting its flag, its heading, and the weather it sailed into.",
	"Sourdough starters need feeding on a schedule; skip two days and the yeast sulks, skip a week and you are starting over.",
	"The observatory scheduled its deep-sky survey around the new moon, when the sky above the ridge was darkest.",
	"A well-tuned bicycle drivetrain is nearly silent; clicking under load usually means a stretched chain or a bent derailleur hanger.",
	"The municipal archive digitized its oldest land records first, since the paper from that era was crumbling fastest.",
	"Tidal pools host creatures that tolerate being submerged twice a day and baked dry in between.",
	"The orchestra rehearsed the final movement in sections, strings first, then winds, before putting the whole thing together.",
	"Glacier meltwater carries fine rock flour that turns alpine lakes an opaque turquoise.",
	"The chess club's opening repertoire leaned heavily on quiet positional lines that frustrated attacking players.",
	"Beekeepers inspect hives in late morning, when most foragers are out and the colony is calmest.",
	"The ferry timetable shifts twice a year with the tides, and the islanders plan their appointments around it.",
	"A cast-iron pan holds heat long after the burner is off, which is exactly why it sears so well.",
	"The seed library lends packets of heirloom vegetables on the promise that growers return seed from their best plants.",
	"Radio operators on the night shift relayed weather reports between stations too far apart to hear each other.",
	"The terraced vineyard drains toward a single stone channel that has carried runoff for three hundred years.",
	"Migratory cranes stop at the same wetland every autumn, and the town schedules its festival around their arrival.",
	"The print shop kept its oldest letterpress running for wedding invitations and nothing else.",
	"Salt marshes buffer the coastline by absorbing storm surge that would otherwise reach the town.",
	"The climbing gym resets one wall every week, and regulars argue about the new routes before anyone has tried them.",
	"A good field notebook records not just what was observed but what the observer expected and did not see.",
}

var (
	seedFileName = flag.String("src", "", "file of seed documents, one per line")
	dbPath       = flag.String("db", "./passage_db", "database directory")
	useMock      = flag.Bool("mock", false, "use the mock embedder instead of a live service")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// ingestAll submits one document per source line, then waits for the
// pipeline to drain.
func ingestAll(ctx context.Context, pipeline *ingest.Pipeline, source iter.Seq[string]) (int, error) {
	count := 0
	for line := range source {
		doc := ingest.Document{
			ID:       fmt.Sprintf("seed-%03d", count),
			Text:     line,
			Metadata: map[string]any{core.MetaDocType: "seed"},
		}
		if err := pipeline.Ingest(ctx, doc); err != nil {
			return count, err
		}
		count++
	}
	pipeline.Wait()
	return count, nil
}

func main() {
	opts := []passage.EngineOption{
		// Seed documents are single sentences, far below the default
		// minimum chunk size
		passage.WithChunkConfig(ingest.ChunkConfig{
			TargetSize: 2048,
			Overlap:    0,
			MinSize:    10,
		}),
	}
	if *useMock {
		opts = append(opts, passage.WithProvider(mock.NewMockProvider()))
	}

	engine, err := passage.Open(*dbPath, opts...)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestPipeline()
	if err != nil {
		panic(err)
	}
	defer pipeline.Release()

	ctx := context.Background()

	// Determine source of seed data
	var source iter.Seq[string]
	if *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(seeds)
	}

	count, err := ingestAll(ctx, pipeline, source)
	if err != nil {
		panic(err)
	}
	slog.Info("seeding complete", "documents", count)
}
