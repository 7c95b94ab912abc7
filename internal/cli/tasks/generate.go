package tasks

import (
	"context"
	"errors"

	"github.com/julianstephens/streakline/internal/cli"
	"github.com/julianstephens/streakline/internal/taskgen"
)

type GenerateCmd struct {
	Habit string `arg:"" optional:"" help:"Habit ID to generate tasks for."`
	All   bool   `help:"Generate for every active habit with a schedule."`
	Days  int    `help:"Lookahead in days (default from config)."`
}

func (c *GenerateCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	days := c.Days
	if days == 0 {
		days = ctx.TaskGen.Lookahead()
	}
	if c.All {
		if c.Habit != "" {
			return errors.New("pass either a habit ID or --all, not both")
		}
		batch, err := ctx.TaskGen.GenerateForAllActiveHabits(bg, days)
		if err != nil {
			return err
		}
		printBatch(ctx, batch)
		return nil
	}

	if c.Habit == "" {
		return errors.New("a habit ID is required unless --all is set")
	}
	res, err := ctx.TaskGen.GenerateForHabit(bg, c.Habit, ctx.Owner, days)
	if err != nil {
		return err
	}
	printResult(ctx, res)
	return nil
}

func printResult(ctx *cli.Context, res taskgen.Result) {
	ctx.Println(cli.SuccessStyle.Render(res.Message()))
	if len(res.DatesGenerated) > 0 {
		ctx.Field("Generated", cli.FormatDates(res.DatesGenerated))
	}
	if len(res.DatesSkipped) > 0 {
		ctx.Field("Skipped", cli.FormatDates(res.DatesSkipped))
	}
}

func printBatch(ctx *cli.Context, batch taskgen.BatchResult) {
	ctx.Printf("%s across %d habit(s): %d generated, %d skipped\n",
		cli.TitleStyle.Render("Task generation"), len(batch.Results), batch.TotalGenerated, batch.TotalSkipped)
	for _, f := range batch.Failures {
		ctx.Println(cli.WarnStyle.Render("  ✗ " + f.HabitID + ": " + f.Err.Error()))
	}
}

type RegenerateCmd struct {
	Habit string `arg:"" help:"Habit ID."`
}

func (c *RegenerateCmd) Run(ctx *cli.Context) error {
	deleted, res, err := ctx.TaskGen.RegenerateFutureTasks(context.Background(), c.Habit, ctx.Owner)
	if err != nil {
		return err
	}
	ctx.Printf("Removed %d pending task(s)\n", deleted)
	printResult(ctx, res)
	return nil
}
