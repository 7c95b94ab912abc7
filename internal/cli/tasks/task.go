package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/streakline/internal/cli"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/utils"
)

type TaskCmd struct {
	List     TaskListCmd     `cmd:"" help:"List tasks."`
	Complete TaskCompleteCmd `cmd:"" help:"Complete a task; habit tasks also complete their habit."`
}

type TaskListCmd struct {
	Habit      string `help:"Only tasks generated from this habit."`
	Status     string `help:"Only tasks with this status (pending|in_progress|completed)."`
	Priority   string `help:"Only tasks with this priority."`
	NoPriority bool   `name:"no-priority" help:"Only tasks without a priority."`
}

func (c *TaskListCmd) filter(owner string) (storage.TaskFilter, error) {
	f := storage.TaskFilter{OwnerID: owner, HabitID: c.Habit, Status: models.TaskStatus(c.Status)}
	switch f.Status {
	case "", models.TaskPending, models.TaskInProgress, models.TaskCompleted:
	default:
		return f, fmt.Errorf("unknown status %q", c.Status)
	}
	switch {
	case c.Priority != "" && c.NoPriority:
		return f, errors.New("--priority and --no-priority are mutually exclusive")
	case c.Priority != "":
		f.Priority = models.Some(c.Priority)
	case c.NoPriority:
		f.Priority = models.Null[string]()
	}
	return f, nil
}

func (c *TaskListCmd) Run(ctx *cli.Context) error {
	f, err := c.filter(ctx.Owner)
	if err != nil {
		return err
	}
	list, err := ctx.Tasks.List(context.Background(), f)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Println("No tasks found.")
		return nil
	}

	for _, t := range list {
		due := "          "
		if t.DueDate != nil {
			due = utils.FormatDate(*t.DueDate)
		}
		mark := "[ ]"
		if t.Status == models.TaskCompleted {
			mark = cli.SuccessStyle.Render("[x]")
		}
		extra := ""
		if len(t.Tags) > 0 {
			extra = cli.MutedStyle.Render(" #" + strings.Join(t.Tags, " #"))
		}
		ctx.Printf("%s %s  %s%s  %s\n", mark, due, t.Title, extra, cli.MutedStyle.Render(t.ID))
	}
	return nil
}

type TaskCompleteCmd struct {
	ID string `arg:"" help:"Task ID."`
}

func (c *TaskCompleteCmd) Run(ctx *cli.Context) error {
	out, err := ctx.Tasks.Complete(context.Background(), c.ID, ctx.Owner)
	if err != nil {
		return err
	}
	ctx.Printf("%s %s\n", cli.SuccessStyle.Render("✓ Completed:"), out.Task.Title)

	hs := out.HabitSync
	switch {
	case !hs.Attempted:
	case hs.Error != nil:
		ctx.Println(cli.WarnStyle.Render("Habit was not updated: " + hs.Error.Error()))
	case hs.AlreadyCompleted:
		ctx.Println(cli.MutedStyle.Render("Habit was already completed that day"))
	default:
		ctx.Printf("Habit streak: %d\n", hs.CurrentStreak)
	}
	return nil
}
