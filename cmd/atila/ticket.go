package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/atila/internal/models"
	"github.com/zulandar/atila/internal/ticket"
)

func newTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Ticket management commands",
	}

	cmd.AddCommand(newTicketCreateCmd())
	cmd.AddCommand(newTicketListCmd())
	cmd.AddCommand(newTicketShowCmd())
	cmd.AddCommand(newTicketUpdateCmd())
	return cmd
}

func newTicketCreateCmd() *cobra.Command {
	var (
		configPath  string
		projectID   uint
		title       string
		description string
		priority    string
		status      string
		category    string
		assignee    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new ticket",
		Long:  "Creates a ticket and re-ranks its project. The new score and position are printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTicketCreate(cmd, configPath, ticket.CreateOpts{
				ProjectID:   projectID,
				Title:       title,
				Description: description,
				Priority:    priority,
				Status:      status,
				Category:    category,
				Assignee:    assignee,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "project id (required)")
	cmd.Flags().StringVar(&title, "title", "", "ticket title (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&priority, "priority", ticket.DefaultPriority, "priority (Highest, High, Medium, Low, Backlog, Completed)")
	cmd.Flags().StringVar(&status, "status", ticket.DefaultStatus, "status (Active, Backlog, Completed)")
	cmd.Flags().StringVar(&category, "category", ticket.DefaultCategory, "category")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runTicketCreate(cmd *cobra.Command, configPath string, opts ticket.CreateOpts) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}

	t, err := a.svc.CreateTicket(context.Background(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created ticket %d in project %d\n", t.ID, t.ProjectID)
	fmt.Fprintf(out, "Score: %.4f  Display: %d  Order: %d\n", t.PScore, t.DisplayScore, t.TicketOrderID)
	return nil
}

func newTicketListCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		status     string
		priority   string
		assignee   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets in worklist order",
		Long:  "Lists tickets ordered by display score with optional filters. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTicketList(cmd, configPath, ticket.ListFilters{
				ProjectID: projectID,
				Status:    status,
				Priority:  priority,
				Assignee:  assignee,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "filter by project id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	return cmd
}

func runTicketList(cmd *cobra.Command, configPath string, filters ticket.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	tickets, err := ticket.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tickets) == 0 {
		fmt.Fprintln(out, "No tickets found.")
		return nil
	}
	writeTicketTable(out, tickets)
	return nil
}

func writeTicketTable(out interface{ Write([]byte) (int, error) }, tickets []models.Ticket) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tTITLE\tSTATUS\tPRIORITY\tSCORE\tASSIGNEE")
	for _, t := range tickets {
		a := t.Assignee
		if a == "" {
			a = "-"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%.2f\t%s\n",
			t.DisplayScore, t.ID, truncate(t.Title, 40), t.Status, t.Priority, t.PScore, a)
	}
	w.Flush()
}

func newTicketShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show ticket details",
		Long:  "Displays all fields of a ticket, including its derived score and rank.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runTicketShow(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	return cmd
}

func runTicketShow(cmd *cobra.Command, configPath string, id uint) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := ticket.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", t.ID)
	fmt.Fprintf(out, "Project:     %d\n", t.ProjectID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(out, "Category:    %s\n", t.Category)
	if t.Assignee != "" {
		fmt.Fprintf(out, "Assignee:    %s\n", t.Assignee)
	}
	fmt.Fprintf(out, "Score:       %.4f\n", t.PScore)
	fmt.Fprintf(out, "Display:     %d\n", t.DisplayScore)
	fmt.Fprintf(out, "Order:       %d\n", t.TicketOrderID)
	if t.IntegrationSource != "" {
		fmt.Fprintf(out, "Source:      %s/%s\n", t.IntegrationSource, t.IntegrationID)
	}
	fmt.Fprintf(out, "Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:     %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
	if t.PlannedStartDate != nil {
		fmt.Fprintf(out, "Start:       %s\n", t.PlannedStartDate.Format("2006-01-02"))
	}
	if t.PlannedEndDate != nil {
		fmt.Fprintf(out, "End:         %s\n", t.PlannedEndDate.Format("2006-01-02"))
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", t.Description)
	}
	return nil
}

func newTicketUpdateCmd() *cobra.Command {
	var (
		configPath  string
		projectID   uint
		title       string
		description string
		priority    string
		status      string
		category    string
		assignee    string
		start       string
		end         string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a ticket",
		Long:  "Updates ticket fields and re-ranks every affected project. Only changed flags are applied.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			updates := make(map[string]interface{})
			if cmd.Flags().Changed("project") {
				updates["project_id"] = projectID
			}
			if cmd.Flags().Changed("title") {
				updates["title"] = title
			}
			if cmd.Flags().Changed("description") {
				updates["description"] = description
			}
			if cmd.Flags().Changed("priority") {
				updates["priority"] = priority
			}
			if cmd.Flags().Changed("status") {
				updates["status"] = status
			}
			if cmd.Flags().Changed("category") {
				updates["category"] = category
			}
			if cmd.Flags().Changed("assignee") {
				updates["assignee"] = assignee
			}
			if cmd.Flags().Changed("start") {
				updates["planned_start_date"] = start
			}
			if cmd.Flags().Changed("end") {
				updates["planned_end_date"] = end
			}
			if len(updates) == 0 {
				return fmt.Errorf("no fields to update")
			}
			return runTicketUpdate(cmd, configPath, id, updates)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "move to project id")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&category, "category", "", "new category")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee")
	cmd.Flags().StringVar(&start, "start", "", "planned start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "planned end date YYYY-MM-DD")
	return cmd
}

func runTicketUpdate(cmd *cobra.Command, configPath string, id uint, updates map[string]interface{}) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	t, err := a.svc.UpdateTicket(context.Background(), id, updates)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated ticket %d: score %.4f, display %d\n", t.ID, t.PScore, t.DisplayScore)
	return nil
}
