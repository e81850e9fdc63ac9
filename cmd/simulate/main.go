// Command simulate plays hands between bots and prints who won them.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/bot"
	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	Players    int
	Hands      int
	Seed       int64
	Decks      int
	Cooldown   time.Duration
	DelayScale float64
	Timeout    time.Duration
	Verbose    bool
)

var Version = "dev"

var names = []string{"Twilight", "Rainbow", "Pinkie", "Rarity", "Fluttershy"}

func main() {
	app := &cli.App{
		Name:  "simulate",
		Usage: "play hands of exploding ponies between bots",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "players",
				Aliases:     []string{"p"},
				Value:       4,
				Destination: &Players,
			}, &cli.IntFlag{
				Name:        "hands",
				Aliases:     []string{"n"},
				Value:       10,
				Destination: &Hands,
			}, &cli.Int64Flag{
				Name:        "seed",
				Usage:       "0 seeds from the clock",
				Destination: &Seed,
			}, &cli.IntFlag{
				Name:        "decks",
				Value:       1,
				Destination: &Decks,
			}, &cli.DurationFlag{
				Name:        "cooldown",
				Value:       20 * time.Millisecond,
				Destination: &Cooldown,
			}, &cli.Float64Flag{
				Name:        "delay-scale",
				Value:       0.001,
				Destination: &DelayScale,
			}, &cli.DurationFlag{
				Name:        "timeout",
				Usage:       "abandon a hand that runs longer than this",
				Value:       time.Minute,
				Destination: &Timeout,
			}, &cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Destination: &Verbose,
			},
		},
		Version: Version,
	}

	app.Action = func(c *cli.Context) error {
		if Players < 2 || Players > len(names) {
			return fmt.Errorf("players must be between 2 and %d", len(names))
		}
		if Seed == 0 {
			Seed = time.Now().UnixNano()
		}

		logger := zap.NewNop()
		if Verbose {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
			defer logger.Sync()
		}

		rng := rand.New(rand.NewSource(Seed))
		wins := make(map[string]int)
		var passes, abandoned int
		for i := 0; i < Hands; i++ {
			res, err := playHand(c.Context, rng, logger)
			if err != nil {
				return fmt.Errorf("hand %d: %w", i+1, err)
			}
			if res.Aborted {
				abandoned++
				continue
			}
			wins[res.WinnerName]++
			passes += res.Passes
		}

		report(wins, passes, abandoned)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func playHand(parent context.Context, rng *rand.Rand, logger *zap.Logger) (game.Result, error) {
	seats := make([]game.Seat, Players)
	for i := range seats {
		seats[i] = game.Seat{ID: fmt.Sprintf("bot-%d", i+1), Username: names[i], Bot: true}
	}

	finished := make(chan game.Result, 1)
	g, err := game.NewGame(fmt.Sprintf("sim-%d", rng.Int63()), seats, game.Options{
		Cooldown:     Cooldown,
		NumDecks:     Decks,
		InputTimeout: 10 * Cooldown,
		FuseTimeout:  10 * Cooldown,
		Rand:         rand.New(rand.NewSource(rng.Int63())),
		OnFinish: func(res game.Result) {
			finished <- res
		},
	}, logger)
	if err != nil {
		return game.Result{}, err
	}
	defer g.Close()

	ctx, cancel := context.WithTimeout(parent, Timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range seats {
		b := bot.New(s.ID, s.Username, g, bot.Options{
			DelayScale: DelayScale,
			Rand:       rand.New(rand.NewSource(rng.Int63())),
		}, logger)
		if err := g.Attach(s.ID, b.Inbox()); err != nil {
			return game.Result{}, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Run(ctx)
		}()
	}

	select {
	case res := <-finished:
		cancel()
		wg.Wait()
		return res, nil
	case <-ctx.Done():
		cancel()
		wg.Wait()
		if parent.Err() != nil {
			return game.Result{}, parent.Err()
		}
		return game.Result{Aborted: true, Reason: "timeout"}, nil
	}
}

func report(wins map[string]int, passes, abandoned int) {
	ranked := make([]string, 0, len(wins))
	total := 0
	for name, n := range wins {
		ranked = append(ranked, name)
		total += n
	}
	sort.Slice(ranked, func(i, j int) bool {
		if wins[ranked[i]] != wins[ranked[j]] {
			return wins[ranked[i]] > wins[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	fmt.Printf("seed %d, %d players, %d hands\n", Seed, Players, Hands)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BOT\tWINS\tSHARE")
	for _, name := range ranked {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", name, wins[name], 100*float64(wins[name])/float64(total))
	}
	w.Flush()
	if total > 0 {
		fmt.Printf("average passes per hand: %.1f\n", float64(passes)/float64(total))
	}
	if abandoned > 0 {
		fmt.Printf("abandoned: %d\n", abandoned)
	}
}
