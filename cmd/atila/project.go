package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/atila/internal/project"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectActivateCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
		projectType string
		priority    string
		tags        string
		start       string
		end         string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long:  "Creates a project. Tags always include the Score:[0.00] and Ticket_ID:0 defaults.",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			return runProjectCreate(cmd, configPath, project.CreateOpts{
				Name:             name,
				Description:      description,
				Type:             projectType,
				Priority:         priority,
				Tags:             tags,
				PlannedStartDate: startDate,
				PlannedEndDate:   endDate,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().StringVar(&name, "name", "", "project name (required, unique)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&projectType, "type", "", "project type (default business)")
	cmd.Flags().StringVar(&priority, "priority", "", "project priority (default Medium)")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&start, "start", "", "planned start date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date YYYY-MM-DD")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runProjectCreate(cmd *cobra.Command, configPath string, opts project.CreateOpts) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}

	p, err := a.svc.CreateProject(context.Background(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %d (%s)\n", p.ID, p.Name)
	fmt.Fprintf(out, "Tags: %s\n", p.Tags)
	return nil
}

func newProjectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	return cmd
}

func runProjectList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	projects, err := project.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPRIORITY\tTYPE")
	for _, p := range projects {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, truncate(p.Name, 40), p.Status, p.Priority, p.Type)
	}
	w.Flush()
	return nil
}

func newProjectActivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "activate <id>",
		Short: "Mark a project Active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runProjectActivate(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	return cmd
}

func runProjectActivate(cmd *cobra.Command, configPath string, id uint) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	p, err := a.svc.ActivateProject(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %d (%s) is now %s\n", p.ID, p.Name, p.Status)
	return nil
}

// parseID parses a positive numeric id argument.
func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: invalid date %q (want YYYY-MM-DD)", name, value)
	}
	return &t, nil
}
