package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/gridentify/internal/client"
	"github.com/robalobadob/gridentify/internal/game"
	"github.com/robalobadob/gridentify/internal/lucid"
)

var botOpts struct {
	seed     uint64
	games    int
	parallel int
	show     bool
	server   string
	nickname string
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Play games with the Lucid solver, offline or on a server",
	Long: `Plays --games games and reports the final scores. With --show every
board is printed.

Offline (the default) game i starts from seed --seed + i.
With --server ws://host/ws/play the games are played on a running server
under --nickname and land on its leaderboard.`,
	RunE: runBot,
}

func init() {
	f := botCmd.Flags()
	f.Uint64Var(&botOpts.seed, "seed", 123, "seed of the first offline game")
	f.IntVar(&botOpts.games, "games", 1, "number of games to play")
	f.IntVar(&botOpts.parallel, "parallel", 1, "games played at once")
	f.BoolVar(&botOpts.show, "show", false, "print the board after every move")
	f.StringVar(&botOpts.server, "server", "", "play on this /ws/play URL instead of offline")
	f.StringVar(&botOpts.nickname, "nickname", "lucid", "nickname used with --server")
	f.Int("depth", 0, "solver depth (SOLVER_DEPTH)")
	f.Int("chain", 0, "longest chain the solver considers (MAX_CHAIN)")
	rootCmd.AddCommand(botCmd)
}

// botGame is the outcome of one game.
type botGame struct {
	Label string
	Score uint64
	Moves int
	Took  time.Duration
}

// moveFunc observes one move of a game.
type moveFunc func(move int, d lucid.Decision, after game.State)

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if botOpts.games < 1 {
		return fmt.Errorf("--games must be at least 1, got %d", botOpts.games)
	}

	solver := lucid.NewSolver(lucid.NewActionData(cfg.MaxChain), cfg.SolverDepth)
	out := cmd.OutOrStdout()
	var mu sync.Mutex // serialises output

	results := make([]botGame, botOpts.games)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(botOpts.parallel, 1))
	for i := range results {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			label := fmt.Sprintf("seed %d", botOpts.seed+uint64(i))
			if botOpts.server != "" {
				label = fmt.Sprintf("game %d", i+1)
			}
			onMove := func(move int, d lucid.Decision, after game.State) {
				if !botOpts.show {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "%s move %d: %v (expected %.2f) score %d\n%s\n\n",
					label, move, d.Action, d.Expected, after.Score, after.Board)
			}

			var err error
			if botOpts.server != "" {
				results[i], err = playRemote(ctx, solver, botOpts.server, botOpts.nickname, onMove)
			} else {
				results[i] = playBot(solver, botOpts.seed+uint64(i), onMove)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
			results[i].Label = label

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s: score %d in %d moves\n", label, results[i].Score, results[i].Moves)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	summarize(out, results)
	return nil
}

func playBot(solver *lucid.Solver, seed uint64, onMove moveFunc) botGame {
	start := time.Now()
	tiles := game.SeededTiles(seed)
	final, moves := solver.Play(game.NewState(tiles), tiles, onMove)
	res := botGame{Score: final.Score, Moves: moves, Took: time.Since(start)}
	log.Info().
		Uint64("seed", seed).
		Uint64("score", res.Score).
		Int("moves", moves).
		Int("depth", solver.MaxDepth()).
		Dur("took", res.Took).
		Msg("bot game over")
	return res
}

// playRemote plays one game on a server, taking the solver's pick each turn.
func playRemote(ctx context.Context, solver *lucid.Solver, url, nickname string, onMove moveFunc) (botGame, error) {
	start := time.Now()
	c, err := client.Dial(ctx, url, nickname)
	if err != nil {
		return botGame{}, err
	}
	defer c.Close()

	for !c.Over() {
		if err := ctx.Err(); err != nil {
			return botGame{}, err
		}
		d := solver.BestAction(c.State())
		if err := c.Move(d.Action); err != nil {
			return botGame{}, err
		}
		onMove(c.Moves(), d, c.State())
	}
	res := botGame{Score: c.State().Score, Moves: c.Moves(), Took: time.Since(start)}
	log.Info().
		Str("server", url).
		Str("nickname", nickname).
		Uint64("score", res.Score).
		Int("moves", res.Moves).
		Dur("took", res.Took).
		Msg("remote game over")
	return res, nil
}

func summarize(out io.Writer, results []botGame) {
	if len(results) < 2 {
		return
	}
	total := lo.SumBy(results, func(r botGame) uint64 { return r.Score })
	best := lo.MaxBy(results, func(a, b botGame) bool { return a.Score > b.Score })
	mean := float64(total) / float64(len(results))
	log.Info().Int("games", len(results)).Float64("mean", mean).Uint64("best", best.Score).Msg("bot summary")
	fmt.Fprintf(out, "%d games: mean %.1f, best %d (%s)\n", len(results), mean, best.Score, best.Label)
}
