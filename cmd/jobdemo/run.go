package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/job"
	"github.com/ternarybob/job/internal/selectmux"
)

var (
	runChildren int
	runFailAt   int
	runCancel   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build a parent job with N children and drive it to completion",
	Run:   runDemo,
}

func init() {
	runCmd.Flags().IntVar(&runChildren, "children", 3, "number of child jobs to attach to the parent")
	runCmd.Flags().IntVar(&runFailAt, "fail-at", -1, "index of a child to complete exceptionally instead of normally (-1 disables)")
	runCmd.Flags().BoolVar(&runCancel, "cancel", false, "cancel the parent shortly after starting, so it ends cancelled instead of completing normally")
}

func runDemo(cmd *cobra.Command, args []string) {
	parent := job.New(
		job.WithName("parent"),
		job.WithLogger(logger),
		job.WithOnCancellation(func(exceptionally bool) {
			logger.Info().Bool("exceptionally", exceptionally).Msg("parent left the active state")
		}),
	)

	children := make([]*job.Job, runChildren)
	for i := range children {
		children[i] = job.New(
			job.WithName(fmt.Sprintf("child-%d", i)),
			job.WithLogger(logger),
			job.WithParent(parent),
		)
	}

	raceFirstFinisher(children)

	var g errgroup.Group
	for i, c := range children {
		i, c := i, c
		g.Go(func() error {
			c.Start()
			time.Sleep(time.Duration(20+rand.Intn(60)) * time.Millisecond)

			if i == runFailAt {
				failure := fmt.Errorf("child %d simulated failure", i)
				if err := c.CompleteExceptionally(failure); err != nil {
					logger.Debug().Err(err).Str("child", c.Name()).Msg("completion rejected, job was already terminal")
				}
				return nil
			}
			if err := c.Complete(i); err != nil {
				logger.Debug().Err(err).Str("child", c.Name()).Msg("completion rejected, job was already terminal")
			}
			return nil
		})
	}

	if runCancel {
		go func() {
			time.Sleep(10 * time.Millisecond)
			logger.Info().Msg("cancelling parent")
			parent.Cancel(nil)
		}()
	}

	parent.Start()
	go func() {
		g.Wait()
		if err := parent.Complete(nil); err != nil {
			logger.Debug().Err(err).Msg("parent completion rejected")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := parent.Join(ctx); err != nil {
		logger.Error().Err(err).Msg("join aborted")
		return
	}

	printTree(parent, children)
}

// raceFirstFinisher demonstrates onJoin select multiplexing: it registers
// every child against one Select and logs once, when the first child
// reaches a terminal state.
func raceFirstFinisher(children []*job.Job) {
	sel := selectmux.New()
	for _, c := range children {
		c.OnJoin(sel, func() {
			logger.Info().Msg("a child finished first")
		})
	}
}

func printTree(parent *job.Job, children []*job.Job) {
	fmt.Printf("parent %s: %s\n", parent.Name(), parent.Status())
	for _, c := range children {
		fmt.Printf("  child %s: %s\n", c.Name(), c.Status())
	}
}
