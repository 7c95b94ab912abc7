package habits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/streakline/internal/cli"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	habitsvc "github.com/julianstephens/streakline/internal/habits"
	"github.com/julianstephens/streakline/internal/models"
	"github.com/julianstephens/streakline/internal/utils"
)

type HabitCmd struct {
	Add      HabitAddCmd      `cmd:"" help:"Add a new habit."`
	List     HabitListCmd     `cmd:"" help:"List habits."`
	Show     HabitShowCmd     `cmd:"" help:"Show a habit and its streak."`
	Edit     HabitEditCmd     `cmd:"" help:"Edit a habit."`
	Archive  HabitArchiveCmd  `cmd:"" help:"Archive a habit."`
	Restore  HabitRestoreCmd  `cmd:"" help:"Restore an archived habit."`
	Delete   HabitDeleteCmd   `cmd:"" help:"Delete a habit with its completions and pending tasks."`
	Complete HabitCompleteCmd `cmd:"" help:"Record a completion for a habit."`
	Undo     HabitUndoCmd     `cmd:"" help:"Undo a completion."`
	History  HabitHistoryCmd  `cmd:"" help:"Show a habit's completions."`
	Import   HabitImportCmd   `cmd:"" help:"Create habits from a YAML file."`
}

type HabitAddCmd struct {
	Identity    string `arg:"" help:"Identity statement, e.g. \"I am a person who reads daily\"."`
	TwoMinute   string `name:"two-minute" required:"" help:"The two-minute version of the habit."`
	Category    string `help:"Category." default:"Other"`
	Description string `help:"Full description."`
	Cue         string `help:"Stacking cue, e.g. \"After I pour my coffee\"."`
	Motivation  string `help:"Why this habit matters."`
	Anchor      string `help:"ID of the habit this one is stacked on."`

	cli.ScheduleFlags `embed:""`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	sched, err := c.Build()
	if err != nil {
		return err
	}
	in := habitsvc.NewHabit{
		OwnerID:           ctx.Owner,
		IdentityStatement: c.Identity,
		FullDescription:   c.Description,
		TwoMinuteVersion:  c.TwoMinute,
		Category:          c.Category,
		StackingCue:       c.Cue,
		Motivation:        c.Motivation,
		Schedule:          sched,
	}
	if c.Anchor != "" {
		in.AnchorHabitID = &c.Anchor
	}

	h, err := ctx.Habits.Create(context.Background(), in)
	if err != nil {
		return err
	}
	ctx.Printf("%s %s\n", cli.SuccessStyle.Render("✓ Added habit:"), h.IdentityStatement)
	ctx.Field("ID", h.ID)
	ctx.Field("Schedule", cli.FormatSchedule(h.Schedule))
	return nil
}

type HabitListCmd struct {
	Archived bool `help:"Include archived habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	list, err := ctx.Habits.List(context.Background(), ctx.Owner, c.Archived)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Println("No habits found.")
		return nil
	}

	for _, h := range list {
		status := ""
		if !h.IsActive() {
			status = cli.MutedStyle.Render(" [ARCHIVED]")
		}
		ctx.Printf("%s  %s  🔥 %d%s\n", cli.MutedStyle.Render(h.ID), h.IdentityStatement, h.CurrentStreak, status)
	}
	return nil
}

type HabitShowCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Habits.Get(context.Background(), c.ID, ctx.Owner)
	if err != nil {
		return err
	}
	printHabit(ctx, h)
	return nil
}

func printHabit(ctx *cli.Context, h models.Habit) {
	ctx.Println(cli.TitleStyle.Render(h.IdentityStatement))
	ctx.Field("ID", h.ID)
	ctx.Field("Status", h.Status)
	ctx.Field("Category", h.Category)
	ctx.Field("Two-minute", h.TwoMinuteVersion)
	if h.FullDescription != "" {
		ctx.Field("Description", h.FullDescription)
	}
	if h.StackingCue != "" {
		ctx.Field("Cue", h.StackingCue)
	}
	if h.Motivation != "" {
		ctx.Field("Motivation", h.Motivation)
	}
	if h.AnchorHabitID != nil {
		ctx.Field("Anchor", *h.AnchorHabitID)
	}
	ctx.Field("Schedule", cli.FormatSchedule(h.Schedule))
	ctx.Field("Streak", h.CurrentStreak)
	ctx.Field("Misses", h.ConsecutiveMisses)
	if h.LastCompletedAt != nil {
		ctx.Field("Last done", utils.FormatDate(*h.LastCompletedAt))
	}
}

type HabitEditCmd struct {
	ID          string   `arg:"" help:"Habit ID."`
	Identity    *string  `help:"New identity statement."`
	TwoMinute   *string  `name:"two-minute" help:"New two-minute version."`
	Category    *string  `help:"New category."`
	Description *string  `help:"New full description."`
	Cue         *string  `help:"New stacking cue."`
	Motivation  *string  `help:"New motivation."`
	Anchor      *string  `help:"New anchor habit ID."`
	Clear       []string `help:"Optional fields to clear (description,cue,motivation,anchor,schedule)." enum:"description,cue,motivation,anchor,schedule"`

	cli.ScheduleFlags `embed:""`
}

func (c *HabitEditCmd) patch() (habitsvc.Patch, error) {
	var p habitsvc.Patch
	set := func(dst *models.Optional[string], v *string) {
		if v != nil {
			*dst = models.Some(*v)
		}
	}
	set(&p.IdentityStatement, c.Identity)
	set(&p.TwoMinuteVersion, c.TwoMinute)
	set(&p.Category, c.Category)
	set(&p.FullDescription, c.Description)
	set(&p.StackingCue, c.Cue)
	set(&p.Motivation, c.Motivation)
	set(&p.AnchorHabitID, c.Anchor)

	sched, err := c.Build()
	if err != nil {
		return p, err
	}
	if sched != nil {
		p.Schedule = models.Some(*sched)
	}

	for _, field := range c.Clear {
		switch field {
		case "description":
			p.FullDescription = models.Null[string]()
		case "cue":
			p.StackingCue = models.Null[string]()
		case "motivation":
			p.Motivation = models.Null[string]()
		case "anchor":
			p.AnchorHabitID = models.Null[string]()
		case "schedule":
			p.Schedule = models.Null[models.RecurringSchedule]()
		}
	}
	return p, nil
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	p, err := c.patch()
	if err != nil {
		return err
	}
	bg := context.Background()
	res, err := ctx.Habits.Update(bg, c.ID, ctx.Owner, p)
	if err != nil {
		return err
	}
	if len(res.Updated) == 0 {
		ctx.Println("Nothing to update.")
		return nil
	}
	ctx.Printf("%s %s\n", cli.SuccessStyle.Render("✓ Updated:"), strings.Join(res.Updated, ", "))

	if res.ScheduleChanged && res.Habit.IsActive() {
		deleted, gen, err := ctx.TaskGen.RegenerateFutureTasks(bg, c.ID, ctx.Owner)
		if err != nil {
			return fmt.Errorf("habit updated but task regeneration failed: %w", err)
		}
		ctx.Printf("Removed %d pending task(s). %s\n", deleted, gen.Message())
	}
	return nil
}

type HabitArchiveCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Habits.Archive(context.Background(), c.ID, ctx.Owner)
	if err != nil {
		return err
	}
	ctx.Printf("Archived habit: %s\n", h.IdentityStatement)
	return nil
}

type HabitRestoreCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (c *HabitRestoreCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Habits.Restore(context.Background(), c.ID, ctx.Owner)
	if err != nil {
		return err
	}
	ctx.Printf("Restored habit: %s\n", h.IdentityStatement)
	return nil
}

type HabitDeleteCmd struct {
	ID      string `arg:"" help:"Habit ID."`
	Force   bool   `help:"Detach habits stacked on this one instead of refusing."`
	NoInput bool   `name:"no-input" help:"Never prompt; report stacked habits as an error."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	res, err := ctx.Habits.Delete(bg, c.ID, ctx.Owner, c.Force)
	if errors.Is(err, apperrors.ErrDependencyConflict) && !c.NoInput {
		ok, askErr := ctx.Ask("Other habits are stacked on this one. Delete anyway?", err.Error())
		if askErr != nil {
			return askErr
		}
		if !ok {
			return err
		}
		res, err = ctx.Habits.Delete(bg, c.ID, ctx.Owner, true)
	}
	if err != nil {
		return err
	}

	ctx.Printf("Deleted habit %s\n", c.ID)
	if res.DependentsDetached > 0 {
		ctx.Println(cli.WarnStyle.Render(fmt.Sprintf("Detached %d stacked habit(s)", res.DependentsDetached)))
	}
	if res.TasksDeleted > 0 {
		ctx.Printf("Removed %d pending task(s)\n", res.TasksDeleted)
	}
	return nil
}

type HabitCompleteCmd struct {
	ID        string `arg:"" help:"Habit ID."`
	TwoMinute bool   `name:"two-minute" help:"Record the two-minute version."`
	Date      string `help:"Day of the completion (YYYY-MM-DD, default today)."`
}

func (c *HabitCompleteCmd) Run(ctx *cli.Context) error {
	at, err := cli.ParseDay(c.Date, time.Now())
	if err != nil {
		return err
	}
	ct := models.CompletionFull
	if c.TwoMinute {
		ct = models.CompletionTwoMinute
	}

	res, err := ctx.Habits.Complete(context.Background(), c.ID, ctx.Owner, ct, at)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateCompletion) {
			return fmt.Errorf("already completed on that day: %w", err)
		}
		return err
	}

	ctx.Printf("%s %s\n", cli.SuccessStyle.Render("✓ Completed:"), res.Habit.IdentityStatement)
	ctx.Printf("Streak: %d → %d\n", res.PreviousStreak, res.Habit.CurrentStreak)
	ctx.Printf("%s\n", cli.MutedStyle.Render("Completion ID: "+res.Completion.ID))
	return nil
}

type HabitUndoCmd struct {
	CompletionID string `arg:"" name:"completion-id" help:"Completion ID (see 'habit history')."`
}

func (c *HabitUndoCmd) Run(ctx *cli.Context) error {
	h, err := ctx.Habits.Undo(context.Background(), c.CompletionID, ctx.Owner)
	if err != nil {
		return err
	}
	ctx.Printf("Undid completion for %s. Streak is now %d\n", h.IdentityStatement, h.CurrentStreak)
	return nil
}

type HabitHistoryCmd struct {
	ID string `arg:"" help:"Habit ID."`
}

func (c *HabitHistoryCmd) Run(ctx *cli.Context) error {
	list, err := ctx.Habits.CompletionHistory(context.Background(), c.ID, ctx.Owner)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Println("No completions yet.")
		return nil
	}
	for _, comp := range list {
		ctx.Printf("%s  %-10s  %s\n", utils.FormatDate(comp.CompletedAt), comp.Type, cli.MutedStyle.Render(comp.ID))
	}
	return nil
}
