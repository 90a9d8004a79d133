package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dori/tandem/internal/app"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/provider"
	"github.com/spf13/cobra"
)

func loginCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the user for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, cleanup, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := application.Login(ctx, args[0], opts.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in as %s\n", s.User().DisplayName)
			if !application.Online() {
				fmt.Fprintln(out, "Working offline: changes are kept in the local mirror")
			}
			return nil
		},
	}
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, cleanup, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Logged out")
			return nil
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and the store in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				u := s.User()
				mode := "offline (local mirror)"
				if a.Online() {
					mode = "online (" + a.Config.Remote.Driver + ")"
				}
				fmt.Fprintf(out, "%s (%s, id %s)\n", u.DisplayName, u.Username, u.ID)
				fmt.Fprintf(out, "Store: %s\n", mode)
				return nil
			})
		},
	}
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the hosted database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, cleanup, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Schema is up to date")
			return nil
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects and their tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				st := s.Snapshot()
				printState(a, st, s.User().ID, mine)
				if st.Error != "" {
					fmt.Fprintf(out, "\n! %s\n", st.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&mine, "mine", "m", false, "Only tasks assigned to me")
	return cmd
}

func printState(a *app.App, st provider.State, userID string, mine bool) {
	if len(st.Projects) == 0 {
		fmt.Fprintln(out, "No projects")
		return
	}
	now := time.Now()
	names := userNames(a)

	for _, p := range st.Projects {
		fmt.Fprintf(out, "%s  %s [%s]\n", shortID(p.ID), p.Name, p.Status)
		for _, t := range st.Tasks {
			if t.ProjectID != p.ID {
				continue
			}
			if mine && (t.AssignedTo == nil || *t.AssignedTo != userID) {
				continue
			}
			line := fmt.Sprintf("  %s  %-11s %-6s %s", shortID(t.ID), t.Status, t.Priority, t.Title)
			if t.AssignedTo != nil {
				line += " @" + nameOf(names, *t.AssignedTo)
			}
			if t.DueDate != nil {
				line += " due:" + formatDueDate(*t.DueDate)
			}
			if t.IsOverdue(now) {
				line += " (overdue)"
			}
			fmt.Fprintln(out, line)
		}
	}
}

func statsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts and project progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				stats := provider.ComputeStats(s.Snapshot(), time.Now())
				fmt.Fprintf(out, "Projects:    %d\n", stats.Projects)
				fmt.Fprintf(out, "Tasks:       %d\n", stats.Tasks)
				fmt.Fprintf(out, "Pending:     %d\n", stats.Pending)
				fmt.Fprintf(out, "In progress: %d\n", stats.InProgress)
				fmt.Fprintf(out, "Completed:   %d\n", stats.Completed)
				fmt.Fprintf(out, "Overdue:     %d\n", stats.Overdue)
				for _, ps := range stats.PerProject {
					fmt.Fprintf(out, "  %-24s %3.0f%% (%d/%d)\n", ps.Name, ps.Progress()*100, ps.Completed, ps.Tasks)
				}
				return nil
			})
		},
	}
}

func addProjectCmd(opts *options) *cobra.Command {
	var description, status string
	cmd := &cobra.Command{
		Use:   "add-project <name>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				p, err := s.AddProject(ctx, model.NewProject{
					Name:        strings.Join(args, " "),
					Description: description,
					Status:      model.ProjectStatus(status),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created project %s (%s)\n", p.Name, p.ID)
				reportDegraded(s)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Initial status (active, on-hold, completed)")
	return cmd
}

func setProjectStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-project-status <project> <active|on-hold|completed>",
		Short: "Change the status of a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				p, err := resolveProject(s.Snapshot(), args[0])
				if err != nil {
					return err
				}
				status := model.ProjectStatus(args[1])
				updated, err := s.UpdateProject(ctx, p.ID, model.ProjectPatch{Status: &status})
				if err != nil {
					return err
				}
				if updated == nil {
					return fmt.Errorf("project %s no longer exists", p.ID)
				}
				fmt.Fprintf(out, "Project %s is %s\n", updated.Name, updated.Status)
				reportDegraded(s)
				return nil
			})
		},
	}
}

func rmProjectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-project <project>",
		Short: "Delete a project and all of its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				p, err := resolveProject(s.Snapshot(), args[0])
				if err != nil {
					return err
				}
				if err := s.DeleteProject(ctx, p.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted project %s\n", p.Name)
				reportDegraded(s)
				return nil
			})
		},
	}
}

func addTaskCmd(opts *options) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add-task <project> <title...>",
		Short: "Create a task, with quick-add syntax",
		Long: `Create a task in a project. The title understands quick-add tokens:

  Priority:  !low !medium !high
  Due date:  due:tomorrow due:friday due:2024-01-15
  Assignee:  @username

Example:
  tandem add-task website "Fix login form !high due:friday @vinay"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				p, err := resolveProject(s.Snapshot(), args[0])
				if err != nil {
					return err
				}

				qa := parseQuickAdd(strings.Join(args[1:], " "), time.Now())
				in := qa.NewTask
				in.ProjectID = p.ID
				in.Description = description
				if qa.assignee != "" {
					id, ok := userID(a, qa.assignee)
					if !ok {
						return fmt.Errorf("unknown user %q", qa.assignee)
					}
					in.AssignedTo = &id
				}

				t, err := s.AddTask(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Created: %s (%s)\n", t.Title, t.ID)
				if t.DueDate != nil {
					fmt.Fprintf(out, "Due: %s\n", formatDueDate(*t.DueDate))
				}
				if t.Priority != model.PriorityMedium {
					fmt.Fprintf(out, "Priority: %s\n", t.Priority)
				}
				reportDegraded(s)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}

func startCmd(opts *options) *cobra.Command {
	return lifecycleCmd(opts, "start <task>", "Start a pending task", "Started",
		func(ctx context.Context, s *provider.Session, id string) (*model.Task, error) {
			return s.StartTask(ctx, id, "")
		})
}

func completeCmd(opts *options) *cobra.Command {
	return lifecycleCmd(opts, "complete <task>", "Complete a task in progress", "Completed",
		func(ctx context.Context, s *provider.Session, id string) (*model.Task, error) {
			return s.CompleteTask(ctx, id, "")
		})
}

func lifecycleCmd(opts *options, use, short, verb string, fn func(context.Context, *provider.Session, string) (*model.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				t, err := resolveTask(s.Snapshot(), args[0])
				if err != nil {
					return err
				}
				updated, err := fn(ctx, s, t.ID)
				if err != nil {
					return err
				}
				if updated == nil {
					return fmt.Errorf("task %s no longer exists", t.ID)
				}
				fmt.Fprintf(out, "%s %s\n", verb, updated.Title)
				reportDegraded(s)
				return nil
			})
		},
	}
}

func assignCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task> <username>",
		Short: "Assign a task to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				t, err := resolveTask(s.Snapshot(), args[0])
				if err != nil {
					return err
				}
				id, ok := userID(a, args[1])
				if !ok {
					return fmt.Errorf("unknown user %q", args[1])
				}
				updated, err := s.AssignTask(ctx, t.ID, id)
				if err != nil {
					return err
				}
				if updated == nil {
					return fmt.Errorf("task %s no longer exists", t.ID)
				}
				fmt.Fprintf(out, "Assigned %s to %s\n", updated.Title, args[1])
				reportDegraded(s)
				return nil
			})
		},
	}
}

func rmTaskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-task <task>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, a *app.App, s *provider.Session) error {
				t, err := resolveTask(s.Snapshot(), args[0])
				if err != nil {
					return err
				}
				if err := s.DeleteTask(ctx, t.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted task %s\n", t.Title)
				reportDegraded(s)
				return nil
			})
		},
	}
}

// reportDegraded prints the session error left by a fallback to the mirror
func reportDegraded(s *provider.Session) {
	if msg := s.Snapshot().Error; msg != "" {
		fmt.Fprintf(out, "! %s\n", msg)
	}
}

// resolveProject finds a project by id, unique id prefix or case-insensitive name
func resolveProject(st provider.State, ref string) (model.Project, error) {
	var matches []model.Project
	for _, p := range st.Projects {
		if p.ID == ref {
			return p, nil
		}
		if strings.HasPrefix(p.ID, ref) || strings.EqualFold(p.Name, ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.Project{}, fmt.Errorf("no project matches %q", ref)
	case 1:
		return matches[0], nil
	}
	return model.Project{}, fmt.Errorf("%q matches %d projects", ref, len(matches))
}

// resolveTask finds a task by id or unique id prefix
func resolveTask(st provider.State, ref string) (model.Task, error) {
	var matches []model.Task
	for _, t := range st.Tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	}
	return model.Task{}, fmt.Errorf("%q matches %d tasks", ref, len(matches))
}

func userID(a *app.App, username string) (string, bool) {
	for _, u := range a.Auth.Users() {
		if strings.EqualFold(u.Username, username) {
			return u.ID, true
		}
	}
	return "", false
}

func userNames(a *app.App) map[string]string {
	names := make(map[string]string)
	for _, u := range a.Auth.Users() {
		names[u.ID] = u.Username
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}

// shortID trims uuids for display. Any unique prefix is accepted back.
// Mirror ids are sequential and shown whole.
func shortID(id string) string {
	if strings.Contains(id, "-") && len(id) > 8 {
		return id[:8]
	}
	return id
}
