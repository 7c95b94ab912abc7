package system

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/streakline/internal/cli"
	"github.com/julianstephens/streakline/internal/jobs"
	"github.com/julianstephens/streakline/internal/missdetect"
	"github.com/julianstephens/streakline/internal/utils"
)

type MissesCmd struct{}

func (c *MissesCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Detector.Run(context.Background())
	if err != nil {
		return err
	}
	printMisses(ctx, report)
	return nil
}

func printMisses(ctx *cli.Context, r missdetect.Report) {
	ctx.Printf("%s checked %d daily habit(s): %d on track, %d recovered, %d first miss, %d reset\n",
		cli.TitleStyle.Render("Miss detection"), r.Checked,
		r.Outcomes[missdetect.OnTrack], r.Outcomes[missdetect.Recovered],
		r.Outcomes[missdetect.FirstMiss], r.Outcomes[missdetect.StreakReset])
	for _, n := range r.Notifications {
		ctx.Println(cli.WarnStyle.Render("  " + n.Message))
	}
	for _, f := range r.Failures {
		ctx.Println(cli.WarnStyle.Render("  ✗ " + f.HabitID + ": " + f.Err.Error()))
	}
}

type DailyCmd struct {
	Force bool `help:"Run the jobs even if they already ran today."`
}

func (c *DailyCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Jobs.RunDaily(context.Background(), c.Force)
	printDaily(ctx, report)
	return err
}

func printDaily(ctx *cli.Context, r jobs.DailyReport) {
	ctx.Println(cli.TitleStyle.Render("Daily jobs for " + utils.FormatDate(r.Day)))
	if g := r.Generation; g != nil {
		ctx.Printf("Task generation: %d generated, %d skipped, %d failed\n", g.TotalGenerated, g.TotalSkipped, len(g.Failures))
	}
	if r.Misses != nil {
		printMisses(ctx, *r.Misses)
	}
	for _, job := range r.Skipped {
		ctx.Println(cli.MutedStyle.Render("Skipped " + string(job) + " (already ran today)"))
	}
}

type SchedulerCmd struct{}

func (c *SchedulerCmd) Run(ctx *cli.Context) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx.Println("Scheduler running, press Ctrl+C to stop")
	err := ctx.Jobs.Loop(sigCtx)
	if errors.Is(err, context.Canceled) {
		ctx.Println("Scheduler stopped")
		return nil
	}
	return err
}
