package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"todo-list/domain"
	"todo-list/query"
)

func (a *cli) listCmd() *cobra.Command {
	var (
		sortBy   string
		desc     bool
		openOnly bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sortBy != "" && !query.Sortable(sortBy) {
				return fmt.Errorf("cannot sort by %q", sortBy)
			}
			mode := query.SortAsc
			if desc {
				mode = query.SortDesc
			}
			filter := query.FilterAll
			if openOnly {
				filter = query.FilterOpen
			}
			items := a.tasks.List(sortBy, mode, filter)
			if a.json {
				return writeJSON(a.stdout, items)
			}
			renderList(a.stdout, items, a.tasks.Count())
			return nil
		},
	}
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "Sort by field (name, importance, dueDate, createdDate, lastEditDate, completed)")
	cmd.Flags().BoolVarP(&desc, "desc", "d", false, "Sort descending")
	cmd.Flags().BoolVarP(&openOnly, "open", "o", false, "Hide completed tasks")
	return cmd
}

func (a *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, ok := a.tasks.Get(args[0])
			if !ok {
				return fmt.Errorf("task %s: %w", args[0], domain.ErrNotFound)
			}
			if a.json {
				return writeJSON(a.stdout, item)
			}
			renderItem(a.stdout, item)
			return nil
		},
	}
}

// itemFlags are the editable fields shared by add and edit.
type itemFlags struct {
	name        string
	description string
	due         string
	importance  string
	completed   bool
}

func (f *itemFlags) bind(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVarP(&f.name, "name", "n", "", "Task name")
	}
	cmd.Flags().StringVarP(&f.description, "description", "D", "", "Task description")
	cmd.Flags().StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVarP(&f.importance, "importance", "i", "", "Importance from 1 to 5")
	cmd.Flags().BoolVar(&f.completed, "completed", false, "Mark the task as completed")
}

func (a *cli) addCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := domain.Draft{
				Name:        strings.Join(args, " "),
				Description: f.description,
				DueDate:     f.due,
				Importance:  f.importance,
				Completed:   strconv.FormatBool(f.completed),
			}
			res, err := a.tasks.Save(cmd.Context(), domain.NewItem(draft))
			if err != nil {
				return err
			}
			if a.json {
				return writeJSON(a.stdout, res.Item)
			}
			ok(a.stdout, fmt.Sprintf("added %s (%s)", res.Item.Name, res.Item.ID))
			return nil
		},
	}
	f.bind(cmd, false)
	return cmd
}

func (a *cli) editCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, found := a.tasks.Get(args[0])
			if !found {
				return fmt.Errorf("task %s: %w", args[0], domain.ErrNotFound)
			}
			if err := f.apply(cmd, &item, time.Now()); err != nil {
				return err
			}
			res, err := a.tasks.Save(cmd.Context(), item)
			if err != nil {
				return err
			}
			if a.json {
				return writeJSON(a.stdout, res.Item)
			}
			ok(a.stdout, fmt.Sprintf("updated %s (%s)", res.Item.Name, res.Item.ID))
			return nil
		},
	}
	f.bind(cmd, true)
	return cmd
}

// apply copies the flags the user actually passed onto item.
func (f *itemFlags) apply(cmd *cobra.Command, item *domain.Item, now time.Time) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		item.Name = f.name
	}
	if flags.Changed("description") {
		item.Description = f.description
	}
	if flags.Changed("due") {
		item.DueDate = domain.ParseDueDate(f.due, now)
	}
	if flags.Changed("importance") {
		n, err := strconv.Atoi(strings.TrimSpace(f.importance))
		if err != nil || !domain.ValidImportance(n) {
			return &domain.ValidationError{Field: "importance", Message: "importance must be between 1 and 5"}
		}
		item.Importance = n
	}
	if flags.Changed("completed") {
		item.Completed = f.completed
	}
	return nil
}

func (a *cli) doneCmd() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, found := a.tasks.Get(args[0])
			if !found {
				return fmt.Errorf("task %s: %w", args[0], domain.ErrNotFound)
			}
			item.Completed = !undo
			res, err := a.tasks.Save(cmd.Context(), item)
			if err != nil {
				return err
			}
			if a.json {
				return writeJSON(a.stdout, res.Item)
			}
			state := "done"
			if undo {
				state = "open"
			}
			ok(a.stdout, fmt.Sprintf("%s is %s", res.Item.Name, state))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&undo, "undo", "u", false, "Reopen the task instead")
	return cmd
}

func (a *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.tasks.Delete(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("task %s: %w", args[0], err)
			}
			if err != nil {
				return err
			}
			if a.json {
				return writeJSON(a.stdout, args[0])
			}
			ok(a.stdout, "deleted "+args[0])
			return nil
		},
	}
}
