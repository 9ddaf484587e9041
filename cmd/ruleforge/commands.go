package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/project"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

type appLoader func() (*App, error)

// serveCmd runs the review HTTP server until interrupted.
func serveCmd(load appLoader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Inbox.Enabled {
				go func() {
					if err := a.runInbox(ctx); err != nil {
						a.logger.Error("Inbox watcher stopped", "error", err)
					}
				}()
			}

			return a.server.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

// reviewCmd starts the interactive review REPL.
func reviewCmd(load appLoader) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review rule candidates interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if projectID != "" {
				if err := a.selectProject(ctx, projectID); err != nil {
					return err
				}
			}
			return a.RunREPL(ctx)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project to review for")
	return cmd
}

// extractCmd runs one extraction intake from a file or inline text.
func extractCmd(load appLoader) *cobra.Command {
	var (
		projectID string
		ruleType  string
		rulePack  string
		file      string
		pageURL   string
	)

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract rule candidates from guideline text or a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			if ruleType != "" && !rule.Category(ruleType).IsValid() {
				return fmt.Errorf("invalid rule type %q", ruleType)
			}

			var src extract.Source
			switch {
			case file != "":
				content, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				src = extract.Source{Filename: file, FileContent: content}
			case pageURL != "":
				doc, err := a.fetcher.Fetch(cmd.Context(), pageURL)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", pageURL, err)
				}
				paragraphs := docsource.SplitParagraphs(doc.Text, docsource.MaxParagraphs)
				if len(paragraphs) == 0 {
					return fmt.Errorf("%s has no extractable text", pageURL)
				}
				src = extract.Source{Text: strings.Join(paragraphs, "\n\n")}
			case len(args) == 1:
				src = extract.Source{Text: args[0]}
			default:
				return fmt.Errorf("provide guideline text, --file, or --url")
			}

			candidates, err := a.intake.Intake(cmd.Context(), src, extract.Context{
				RuleType:  rule.Category(ruleType),
				RulePack:  rulePack,
				ProjectID: projectID,
			})
			if err != nil {
				return err
			}

			a.session.SelectProject(review.ProjectRef{ID: projectID})
			a.session.Append(candidates...)
			printCandidates(candidates, 0)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project to extract for (required)")
	cmd.Flags().StringVarP(&ruleType, "type", "t", "", "Rule category hint")
	cmd.Flags().StringVar(&rulePack, "pack", "", "Target pack name hint")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Guideline document to extract from")
	cmd.Flags().StringVar(&pageURL, "url", "", "Guideline web page to extract from (HTTPS only)")
	return cmd
}

// packCmd lists locally saved packs.
func packCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Work with saved rule packs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List locally saved packs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.packStore.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(result.Records) == 0 {
				fmt.Println("No saved packs.")
				return nil
			}
			for _, record := range result.Records {
				line := fmt.Sprintf("%-30s %d rules  %s", record.Slug,
					len(record.Submission.Rules), record.CreatedAt.Format("2006-01-02 15:04"))
				if record.SubmittedAt != nil {
					line += "  submitted"
				}
				fmt.Println(line)
			}
			for _, loadErr := range result.Errors {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <slug>",
		Short: "Show a saved pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.packStore.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Pack: %s (%s)\n", record.Submission.Name, record.Submission.Status)
			if record.Submission.ProjectID != "" {
				fmt.Printf("Project: %s\n", record.Submission.ProjectID)
			}
			fmt.Printf("Rules: %d\n", len(record.Submission.Rules))
			if record.Receipt != nil && record.Receipt.ID != "" {
				fmt.Printf("Backend ID: %s\n", record.Receipt.ID)
			}
			return nil
		},
	})

	return cmd
}

// projectsCmd lists and creates projects in the directory service.
func projectsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Work with the project directory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.projects.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("No projects.")
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%-24s %s\n", p.ID, p.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.projects.Create(cmd.Context(), project.Project{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Printf("Created project %s (%s)\n", created.Name, created.ID)
			return nil
		},
	})

	return cmd
}

// selectProject resolves a project by ID against the directory and loads
// its existing rules into the session.
func (a *App) selectProject(ctx context.Context, projectID string) error {
	ref := review.ProjectRef{ID: projectID}
	if projects, err := a.projects.List(ctx); err == nil {
		for _, p := range projects {
			if p.ID == projectID {
				ref.Name = p.Name
				break
			}
		}
	}
	a.session.SelectProject(ref)

	existing, err := a.projects.Rules(ctx, projectID)
	if err != nil {
		a.logger.Warn("Failed to load project rules", "project", projectID, "error", err)
		return nil
	}
	a.session.ReplaceAll(existing)
	fmt.Printf("Selected project %s (%d existing rules)\n", projectID, len(existing))
	return nil
}
