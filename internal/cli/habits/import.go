package habits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/streakline/internal/cli"
	habitsvc "github.com/julianstephens/streakline/internal/habits"
	"github.com/julianstephens/streakline/internal/models"
)

// HabitFile is the YAML layout read by 'habit import'.
type HabitFile struct {
	Habits []HabitSpec `yaml:"habits"`
}

type HabitSpec struct {
	IdentityStatement string `yaml:"identity_statement"`
	TwoMinuteVersion  string `yaml:"two_minute_version"`
	Category          string `yaml:"category"`
	FullDescription   string `yaml:"full_description"`
	StackingCue       string `yaml:"stacking_cue"`
	Motivation        string `yaml:"motivation"`

	// Anchor is either the ID of an existing habit or the identity statement of a habit
	// earlier in the same file.
	Anchor   string                    `yaml:"anchor"`
	Schedule *models.RecurringSchedule `yaml:"schedule"`
}

// ParseHabitFile decodes r, rejecting unknown fields.
func ParseHabitFile(r io.Reader) (HabitFile, error) {
	var f HabitFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return HabitFile{}, fmt.Errorf("failed to parse habit file: %w", err)
	}
	return f, nil
}

type HabitImportCmd struct {
	File string `arg:"" type:"existingfile" help:"YAML file with a top-level 'habits' list."`
}

func (c *HabitImportCmd) Run(ctx *cli.Context) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	hf, err := ParseHabitFile(f)
	if err != nil {
		return err
	}
	if len(hf.Habits) == 0 {
		ctx.Println("No habits in file.")
		return nil
	}

	created, errs := importHabits(context.Background(), ctx, hf.Habits)
	for _, h := range created {
		ctx.Printf("%s %s %s\n", cli.SuccessStyle.Render("✓"), h.IdentityStatement, cli.MutedStyle.Render(h.ID))
	}
	ctx.Printf("Imported %d of %d habit(s)\n", len(created), len(hf.Habits))
	return errors.Join(errs...)
}

func importHabits(bg context.Context, ctx *cli.Context, specs []HabitSpec) ([]models.Habit, []error) {
	byIdentity := make(map[string]string, len(specs))
	var (
		created []models.Habit
		errs    []error
	)
	for i, spec := range specs {
		in := habitsvc.NewHabit{
			OwnerID:           ctx.Owner,
			IdentityStatement: spec.IdentityStatement,
			FullDescription:   spec.FullDescription,
			TwoMinuteVersion:  spec.TwoMinuteVersion,
			Category:          spec.Category,
			StackingCue:       spec.StackingCue,
			Motivation:        spec.Motivation,
			Schedule:          spec.Schedule,
		}
		if in.Category == "" {
			in.Category = "Other"
		}
		if spec.Anchor != "" {
			anchor := spec.Anchor
			if id, ok := byIdentity[anchor]; ok {
				anchor = id
			}
			in.AnchorHabitID = &anchor
		}

		h, err := ctx.Habits.Create(bg, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("habit %d (%q): %w", i+1, spec.IdentityStatement, err))
			continue
		}
		byIdentity[h.IdentityStatement] = h.ID
		created = append(created, h)
	}
	return created, errs
}
